package deploy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcelsud/deployhook/tenant"
	"github.com/spf13/afero"
)

const (
	DefaultHomeRoot = "/home"
	DefaultScript   = "deploy.sh"
	DefaultSudo     = "sudo"
)

/* Trigger runs a tenant's deploy entry point as that tenant
 *   home:        <homeRoot>/<tenant>
 *   entry point: <home>/<script>
 *   command:     sudo -n --user=<tenant> -- <entry point>, cwd = home
 */
type Trigger struct {
	fs       afero.Fs
	runner   Runner
	homeRoot string
	script   string
	sudo     string
	now      func() time.Time
}

type option func(*Trigger)

func WithHomeRoot(dir string) option {
	return func(t *Trigger) {
		t.homeRoot = dir
	}
}

func WithScript(name string) option {
	return func(t *Trigger) {
		t.script = name
	}
}

// WithSudo sets the privilege switching binary
func WithSudo(path string) option {
	return func(t *Trigger) {
		t.sudo = path
	}
}

func WithClock(now func() time.Time) option {
	return func(t *Trigger) {
		t.now = now
	}
}

// NewTrigger creates a trigger that checks entry points on fs and runs them with runner
func NewTrigger(fs afero.Fs, runner Runner, opts ...option) *Trigger {
	t := &Trigger{
		fs:       fs,
		runner:   runner,
		homeRoot: DefaultHomeRoot,
		script:   DefaultScript,
		sudo:     DefaultSudo,
		now:      time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Paths returns the home directory and entry point of a tenant
func (t *Trigger) Paths(tenantID string) (home, script string) {
	home = filepath.Join(t.homeRoot, tenantID)
	return home, filepath.Join(home, t.script)
}

// Command builds the argument vector for a tenant's deployment.
// The tenant id is a single argv element and never reaches a shell.
func (t *Trigger) Command(tenantID string) Command {
	home, script := t.Paths(tenantID)
	return Command{
		Path: t.sudo,
		Args: []string{"-n", "--user=" + tenantID, "--", script},
		Dir:  home,
	}
}

// Trigger runs the deployment of tenantID and blocks until it finishes
func (t *Trigger) Trigger(ctx context.Context, tenantID string) Outcome {
	start := t.now()
	outcome := Outcome{Tenant: tenantID}

	// checked again here: the id ends up as a user name and a path element
	if !tenant.ValidID(tenantID) {
		outcome.Err = fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
		return outcome
	}

	_, script := t.Paths(tenantID)
	if _, err := t.fs.Stat(script); err != nil {
		outcome.Err = fmt.Errorf("%w: %s", ErrScriptNotFound, script)
		return outcome
	}

	output, err := t.runner.Run(ctx, t.Command(tenantID))
	outcome.Output = strings.TrimRight(string(output), "\n")
	outcome.Duration = t.now().Sub(start)
	if err != nil {
		outcome.Err = fmt.Errorf("%w: %w", ErrDeploymentFailed, err)
		return outcome
	}

	outcome.Success = true
	return outcome
}
