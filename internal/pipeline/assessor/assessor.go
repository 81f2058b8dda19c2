package assessor

import (
	"context"
	"strings"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/classifier"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/planner"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Assessor defines the interface for executing planned jobs
type Assessor interface {
	// Execute runs every step of a job and parses the collected output.
	// It returns an error only when the context ended before any step ran.
	Execute(ctx context.Context, job planner.Job) (entity.AttackResult, error)
}

// Enumerator lists the services of a Bluetooth device
type Enumerator interface {
	Enumerate(ctx context.Context, dev entity.BluetoothDevice) (string, error)
}

// StepExecutor runs job steps through a command executor, one at a time
type StepExecutor struct {
	exec       cliexec.Executor
	enumerator Enumerator
	log        *logrus.Entry
	now        func() time.Time
}

// NewStepExecutor creates an assessor. A nil enumerator disables device
// enumeration.
func NewStepExecutor(exec cliexec.Executor, enumerator Enumerator, log *logrus.Entry) *StepExecutor {
	return &StepExecutor{
		exec:       exec,
		enumerator: enumerator,
		log:        log.WithField("component", "assessor"),
		now:        time.Now,
	}
}

// Execute runs a job. A failing step never aborts the job; only a done
// context stops further steps.
func (e *StepExecutor) Execute(ctx context.Context, job planner.Job) (entity.AttackResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.AttackResult{}, err
	}

	log := e.log.WithFields(logrus.Fields{
		"job":    job.ID,
		"attack": job.Module.Attack,
		"target": job.Target.ID(),
	})

	if job.Enumerate {
		e.enumerate(ctx, job.Target, log)
	}

	start := e.now()
	raw := entity.RawOutput{InvocationID: uuid.NewString(), Attack: job.Module.Attack}
	for _, step := range job.Steps {
		if ctx.Err() != nil {
			log.WithField("step", step.Name).Warn("Interrupted before step")
			break
		}
		if step.When != nil && !step.When(raw.Steps) {
			log.WithField("step", step.Name).Debug("Step skipped")
			continue
		}
		raw.Steps = append(raw.Steps, e.runStep(ctx, step, log))
	}
	raw.Finished = e.now()

	result := job.Module.Parse(raw, job.Target)
	log.WithFields(logrus.Fields{
		"success":  result.Success,
		"steps":    len(raw.Steps),
		"duration": raw.Finished.Sub(start).Round(time.Millisecond).String(),
	}).Info("Attack finished")
	return result, nil
}

func (e *StepExecutor) runStep(ctx context.Context, step classifier.Step, log *logrus.Entry) entity.StepOutput {
	if step.Background != nil {
		proc, err := e.exec.Start(ctx, *step.Background)
		if err != nil {
			log.WithError(err).WithField("command", step.Background.String()).Warn("Background command failed to start")
		} else {
			defer proc.Stop()
		}
	}

	out := e.exec.Run(ctx, step.Spec)
	return entity.StepOutput{
		Name:     step.Name,
		Command:  step.Spec.String(),
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Status:   out.Status,
		ExitCode: out.ExitCode,
		Duration: out.Duration,
		Artifact: step.Artifact,
	}
}

func (e *StepExecutor) enumerate(ctx context.Context, t entity.Target, log *logrus.Entry) {
	dev, ok := t.(entity.BluetoothDevice)
	if !ok || e.enumerator == nil {
		return
	}
	services, err := e.enumerator.Enumerate(ctx, dev)
	if err != nil {
		log.WithError(err).Warn("Device enumeration failed")
		return
	}
	lines := 0
	for _, l := range strings.Split(services, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	log.WithField("lines", lines).Info("Device enumerated")
	log.Debug(services)
}
