package cliexec

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
)

// Background is a detached process owned by the caller. Stop must be called
// on every exit path of the owning scope.
type Background struct {
	cmd   *exec.Cmd
	spec  entity.CommandSpec
	log   *logrus.Entry
	grace time.Duration
	start time.Time

	done chan struct{}
	once sync.Once
	err  error
}

// Start launches spec without waiting for it. Output is discarded. The
// process is also stopped when ctx is cancelled.
func (r *Runner) Start(ctx context.Context, spec entity.CommandSpec) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return signalGroup(cmd, sigTerm) }
	cmd.WaitDelay = r.grace()

	if err := cmd.Start(); err != nil {
		r.Log.WithFields(logrus.Fields{
			"command": spec.String(),
			"status":  entity.CommandFailed,
		}).WithError(err).Error("Could not start background command")
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	b := &Background{
		cmd:   cmd,
		spec:  spec,
		log:   r.Log,
		grace: r.grace(),
		start: time.Now(),
		done:  make(chan struct{}),
	}
	go func() {
		b.err = cmd.Wait()
		close(b.done)
	}()

	r.Log.WithFields(logrus.Fields{
		"command": spec.String(),
		"pid":     cmd.Process.Pid,
	}).Debug("Background command started")
	return b, nil
}

// Done is closed once the process has exited
func (b *Background) Done() <-chan struct{} { return b.done }

// Stop terminates the process group and waits for it. It is safe to call
// more than once.
func (b *Background) Stop() {
	b.once.Do(func() {
		select {
		case <-b.done:
		default:
			_ = signalGroup(b.cmd, sigTerm)
			select {
			case <-b.done:
			case <-time.After(b.grace):
				_ = signalGroup(b.cmd, sigKill)
				<-b.done
			}
		}
		b.log.WithFields(logrus.Fields{
			"command":  b.spec.String(),
			"duration": time.Since(b.start).Round(time.Millisecond).String(),
			"status":   entity.CommandOk,
		}).Info("Background command stopped")
	})
}
