package deploy

import (
	"context"

	"github.com/marcelsud/deployhook/logsink"
	"github.com/marcelsud/deployhook/metrics"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// UseCase starts a deployment without waiting for it
type UseCase interface {
	Dispatch(ctx context.Context, tenantID string)
}

// Triggerer runs one deployment to completion
type Triggerer interface {
	Trigger(ctx context.Context, tenantID string) Outcome
}

/* Dispatcher is the background phase of a push request
 * Every Dispatch call runs its own deployment: no queue, no coalescing,
 * no timeout. Wait is used on shutdown to let running deployments finish.
 */
type Dispatcher struct {
	trigger  Triggerer
	log      *logsink.Logger
	recorder metrics.Recorder
	wg       conc.WaitGroup
}

// NewDispatcher creates a dispatcher with dependency injection
func NewDispatcher(trigger Triggerer, log *logsink.Logger, recorder metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		trigger:  trigger,
		log:      log,
		recorder: recorder,
	}
}

// Dispatch runs the deployment of tenantID in the background. The request
// context only contributes its values; its cancellation is ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Go(func() {
		var pc panics.Catcher
		pc.Try(func() { d.run(ctx, tenantID) })
		if r := pc.Recovered(); r != nil {
			d.log.Errorf("Deployment for %s panicked: %v", tenantID, r.Value)
			d.recorder.DeploymentFinished(ctx, tenantID, "panic", 0)
		}
	})
}

// Wait blocks until every dispatched deployment has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, tenantID string) {
	d.log.Infof("Deployment started for: %s", tenantID)

	outcome := d.trigger.Trigger(ctx, tenantID)
	d.recorder.DeploymentFinished(ctx, tenantID, outcome.Result(), outcome.Duration)

	if outcome.Success {
		d.log.Infof("Deployment completed for %s (took %s)", tenantID, outcome.Duration)
		return
	}

	if outcome.Output == "" {
		d.log.Errorf("Deployment failed for %s: %v", tenantID, outcome.Err)
		return
	}
	d.log.Errorf("Deployment failed for %s: %v\n%s", tenantID, outcome.Err, outcome.Output)
}
