package metrics

import (
	"context"
	"time"
)

// Recorder receives the measurements of the webhook pipeline.
type Recorder interface {
	// RequestHandled is called once per webhook request, after the response
	// status is known. reason is "accepted" or the rejection reason.
	RequestHandled(ctx context.Context, reason string, statusCode int)

	// DeploymentFinished is called once per triggered deployment
	DeploymentFinished(ctx context.Context, tenant string, result string, duration time.Duration)
}

// Nop discards every measurement
type Nop struct{}

func (Nop) RequestHandled(context.Context, string, int) {}

func (Nop) DeploymentFinished(context.Context, string, string, time.Duration) {}
