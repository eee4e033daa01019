package match

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var ErrEmptyCommand = errors.New("empty command")

// Output is what one controller run produced. A nonzero exit is not an error
// at this layer; the parser decides whether the output is usable.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Executor plays a match. Runner is the process-backed implementation.
type Executor interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// Runner starts the controller as a child process.
type Runner struct {
	// Dir is the working directory of the controller; "" means the caller's.
	Dir string
	// Timeout bounds a single match; zero disables the deadline.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
}

// NewRunner creates a runner with the given per-match deadline.
func NewRunner(dir string, timeout time.Duration) *Runner {
	return &Runner{Dir: dir, Timeout: timeout}
}

// Run executes inv and captures stdout and stderr. It only returns an error
// when the process cannot be started at all.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Output, error) {
	args := inv.Args()
	if len(args) == 0 || args[0] == "" {
		return Output{}, ErrEmptyCommand
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	killProcessGroup(cmd)
	// Grandchildren outside the group may keep the pipes open.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		out.TimedOut = true
		return out, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
	case errors.Is(err, exec.ErrWaitDelay):
	case cmd.ProcessState != nil:
		// started and exited; the captured output is still worth parsing
	default:
		return out, fmt.Errorf("start %s: %w", args[0], err)
	}
	return out, nil
}
