package deploy

import (
	"errors"
	"time"
)

var (
	// ErrScriptNotFound means the tenant has no deploy entry point; nothing was spawned
	ErrScriptNotFound = errors.New("deploy script not found")

	// ErrDeploymentFailed means the entry point ran and did not exit cleanly
	ErrDeploymentFailed = errors.New("deployment failed")

	// ErrInvalidTenant means the identifier is unsafe to use as a user name or path
	ErrInvalidTenant = errors.New("invalid tenant id")
)

/* Outcome is the result of one triggered deployment
 * It is logged once by the dispatcher and then dropped
 */
type Outcome struct {
	Tenant   string
	Success  bool
	Output   string // combined stdout and stderr
	Err      error
	Duration time.Duration
}

// Category returns the error category of a failed outcome, or "" on success
func (o Outcome) Category() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, ErrScriptNotFound):
		return "ScriptNotFound"
	case errors.Is(o.Err, ErrInvalidTenant):
		return "InvalidTenant"
	default:
		return "DeploymentFailed"
	}
}

// Result is the outcome as a metric label
func (o Outcome) Result() string {
	if o.Success {
		return "success"
	}
	return o.Category()
}
