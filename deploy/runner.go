package deploy

import (
	"context"
	"os/exec"
)

// Command is an argument vector; it is never passed through a shell
type Command struct {
	Path string
	Args []string
	Dir  string
}

// Runner executes a command and returns its combined stdout and stderr
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands as local subprocesses
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	// chdir happens as the service user, before sudo switches identity
	cmd.Dir = c.Dir
	return cmd.CombinedOutput()
}
