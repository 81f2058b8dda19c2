package cliexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
)

// DefaultGracePeriod is how long a stopped process group gets between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 3 * time.Second

// Executor runs one external invocation. It is the seam every pipeline
// component uses so tests can substitute canned tool output.
type Executor interface {
	Run(ctx context.Context, spec entity.CommandSpec) entity.CommandOutput
	Start(ctx context.Context, spec entity.CommandSpec) (Process, error)
}

// Process is a detached background invocation
type Process interface {
	Stop()
	Done() <-chan struct{}
}

// Runner executes external tools in their own process group
type Runner struct {
	Log         *logrus.Entry
	GracePeriod time.Duration
}

// New creates a runner logging through log
func New(log *logrus.Entry) *Runner {
	return &Runner{Log: log.WithField("component", "cliexec"), GracePeriod: DefaultGracePeriod}
}

// Run executes spec and waits for it. It never returns an error past its
// boundary; every failure is encoded in the returned status.
func (r *Runner) Run(ctx context.Context, spec entity.CommandSpec) entity.CommandOutput {
	start := time.Now()
	out := r.run(ctx, spec)
	out.Duration = time.Since(start)

	l := r.Log.WithFields(logrus.Fields{
		"command":   spec.String(),
		"duration":  out.Duration.Round(time.Millisecond).String(),
		"status":    out.Status,
		"exit_code": out.ExitCode,
	})
	if out.Err != nil {
		l = l.WithError(out.Err)
	}
	l.Info("Command finished")
	return out
}

func (r *Runner) run(ctx context.Context, spec entity.CommandSpec) entity.CommandOutput {
	if err := ctx.Err(); err != nil {
		return entity.CommandOutput{Status: entity.CommandFailed, Stderr: err.Error(), ExitCode: -1, Err: err}
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return signalGroup(cmd, sigTerm) }
	cmd.WaitDelay = r.grace()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return entity.CommandOutput{Status: entity.CommandFailed, Stderr: err.Error(), ExitCode: -1, Err: err}
	}
	waitErr := cmd.Wait()
	_ = signalGroup(cmd, sigKill)

	out := entity.CommandOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Status:   entity.CommandOk,
		ExitCode: exitCode(cmd, waitErr),
	}

	switch {
	case ctx.Err() != nil:
		out.Status = entity.CommandFailed
		out.Err = ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		if !spec.Window {
			out.Status = entity.CommandTimedOut
			out.Stdout = ""
			out.Err = runCtx.Err()
		}
	case waitErr != nil:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			out.Status = entity.CommandFailed
			out.Err = waitErr
		}
	}
	return out
}

func (r *Runner) grace() time.Duration {
	if r.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return r.GracePeriod
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
