package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter records pipeline metrics with OpenTelemetry and exposes them
// in Prometheus format
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	gatherer      promclient.Gatherer

	// OTel meters and instruments
	meter              metric.Meter
	requestCounter     metric.Int64Counter
	deploymentCounter  metric.Int64Counter
	deploymentDuration metric.Float64Histogram
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter registered on reg
func NewOTelExporter(reg *promclient.Registry) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	// Create meter with service info
	meter := meterProvider.Meter(
		"deployhook",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		gatherer:      reg,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.requestCounter, err = oe.meter.Int64Counter(
		"deployhook.requests",
		metric.WithDescription("Webhook requests by classification result"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating request counter: %w", err)
	}

	oe.deploymentCounter, err = oe.meter.Int64Counter(
		"deployhook.deployments",
		metric.WithDescription("Finished deployments by tenant and result"),
		metric.WithUnit("{deployments}"),
	)
	if err != nil {
		return fmt.Errorf("creating deployment counter: %w", err)
	}

	oe.deploymentDuration, err = oe.meter.Float64Histogram(
		"deployhook.deployment.duration",
		metric.WithDescription("Wall time of deploy entry points"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating deployment duration histogram: %w", err)
	}

	return nil
}

func (oe *OTelExporter) RequestHandled(ctx context.Context, reason string, statusCode int) {
	oe.requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.Int("http.status_code", statusCode),
	))
}

func (oe *OTelExporter) DeploymentFinished(ctx context.Context, tenant string, result string, duration time.Duration) {
	oe.deploymentCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tenant", tenant),
		attribute.String("result", result),
	))
	oe.deploymentDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("result", result),
	))
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.gatherer, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
