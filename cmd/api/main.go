package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/deployhook/config"
	"github.com/marcelsud/deployhook/deploy"
	"github.com/marcelsud/deployhook/internal/http/chi"
	"github.com/marcelsud/deployhook/logsink"
	"github.com/marcelsud/deployhook/metrics"
	"github.com/marcelsud/deployhook/tenant"
	tenantredis "github.com/marcelsud/deployhook/tenant/redis"
	"github.com/marcelsud/deployhook/webhook"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

/* main.go is where every package is wired together
 * Imports only go down: the binary imports the receiver layers, which import
 * the tenant store and the log sink
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	zl := zerolog.New(os.Stdout).With().Timestamp().Str("service", "deployhook").Logger()
	fs := afero.NewOsFs()

	sinks := []logsink.Sink{logsink.NewZerolog(zl)}
	file, err := logsink.OpenFile(fs, cfg.LogFile)
	if err != nil {
		// the receiver still works without its log file, entries go to stdout only
		zl.Warn().Err(err).Str("path", cfg.LogFile).Msg("log file unavailable")
	} else {
		defer file.Close()
		sinks = append(sinks, file)
	}
	log := logsink.New(sinks, logsink.WithErrorHandler(func(err error) {
		zl.Error().Err(err).Msg("writing log entry")
	}))

	store, closeStore, err := openStore(ctx, cfg, fs, zl)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer closeStore()

	exporter, err := metrics.NewOTelExporter(promclient.NewRegistry())
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	trigger := deploy.NewTrigger(fs, deploy.ExecRunner{},
		deploy.WithHomeRoot(cfg.HomeRoot),
		deploy.WithScript(cfg.DeployScript),
		deploy.WithSudo(cfg.SudoPath),
	)
	dispatcher := deploy.NewDispatcher(trigger, log, exporter)
	classifier := webhook.NewService(store, log)

	r := chi.WebhookHandlers(ctx, classifier, dispatcher, exporter, exporter.ServeHTTP())
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, cfg.ShutdownTimeoutDuration(), errShutdown)
	zl.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Println(err)
		return
	}
	err = <-errShutdown

	// running deploy scripts are never cut short
	zl.Info().Msg("waiting for running deployments")
	dispatcher.Wait()

	if err != nil {
		fmt.Println(err)
		return
	}
}

// openStore returns the tenant store selected by STORE_BACKEND and its cleanup
func openStore(ctx context.Context, cfg *config.Config, fs afero.Fs, logger zerolog.Logger) (tenant.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		store, err := tenantredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening tenant store: %w", err)
		}
		return store, func() { store.Close(ctx) }, nil
	default:
		store := tenant.NewFileStore(fs, cfg.AppsFile, cfg.WebhooksFile, tenant.WithLogger(logger))
		return store, func() {}, nil
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, timeout time.Duration, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
