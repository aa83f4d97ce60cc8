package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/getship/shipd/pkg/domain/entities"
)

// Timeout classes for subprocess work. A command that exceeds its class is
// killed, never left to linger.
const (
	TimeoutShort   = 10 * time.Second
	TimeoutRestart = 2 * time.Minute
	TimeoutBackup  = 60 * time.Second
	TimeoutBuild   = 5 * time.Minute
)

// Command is a fully structured subprocess invocation: argument vector only,
// no shell interpretation anywhere.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Result captures the subprocess outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. The interface exists so services can be tested
// against a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// LocalRunner runs commands on the host.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = TimeoutShort
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	if err != nil {
		msg := cmd.Name + " failed"
		if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			msg = cmd.Name + " timed out after " + timeout.String()
		}
		return res, entities.NewExecutionError(msg, err, res.Stdout, res.Stderr)
	}
	return res, nil
}
