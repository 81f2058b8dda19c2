package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/metrics"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/assessor"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/classifier"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/planner"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/reporter"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/scanner"

	"github.com/sirupsen/logrus"
)

// Orchestrator defines the main orchestration interface
type Orchestrator interface {
	// Run drives discovery, attack and persistence cycles until ctx ends
	// or the configured cycle count is reached
	Run(ctx context.Context) (*OrchestrationResult, error)

	// GetStatus returns the current orchestration status
	GetStatus() OrchestrationStatus
}

// ScannerFactory builds the discovery scanner once the Wi-Fi interface is known
type ScannerFactory func(iface string) scanner.Scanner

// OrchestrationResult summarizes a finished run
type OrchestrationResult struct {
	RunID     string                `json:"run_id"`
	Interface string                `json:"interface,omitempty"`
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time"`
	Duration  time.Duration         `json:"duration"`
	Status    string                `json:"status"` // completed, cancelled
	Cycles    int                   `json:"cycles"`
	Results   map[entity.Domain]int `json:"results"`
	Errors    []string              `json:"errors,omitempty"`
}

// OrchestrationStatus represents the current status of orchestration
type OrchestrationStatus struct {
	Phase       string        `json:"phase"`
	Cycle       int           `json:"cycle"`
	CurrentJob  string        `json:"current_job,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	ElapsedTime time.Duration `json:"elapsed_time"`
	Message     string        `json:"message,omitempty"`
}

// OrchestratorConfig contains orchestrator configuration
type OrchestratorConfig struct {
	Backoff        time.Duration `yaml:"backoff" json:"backoff"`
	MaxCycles      int           `yaml:"max_cycles" json:"max_cycles"` // 0 runs until cancelled
	CleanupTimeout time.Duration `yaml:"cleanup_timeout" json:"cleanup_timeout"`
}

// DefaultOrchestratorConfig returns default orchestrator configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Backoff:        30 * time.Second,
		CleanupTimeout: 30 * time.Second,
	}
}

// OrchestratorConfigFromRun derives the loop settings from the run context
func OrchestratorConfigFromRun(rc *config.RunContext) OrchestratorConfig {
	cfg := DefaultOrchestratorConfig()
	cfg.Backoff = rc.Settings.Backoff
	cfg.MaxCycles = rc.Cycles
	return cfg
}

// OrchestrationPhase constants
const (
	PhaseIdle               = "idle"
	PhaseProvisioning       = "provisioning"
	PhaseDiscovering        = "discovering"
	PhaseAttackingWifi      = "attacking_wifi"
	PhaseAttackingBluetooth = "attacking_bluetooth"
	PhasePersisting         = "persisting"
	PhaseWaiting            = "waiting"
	PhaseCleanup            = "cleanup"
	PhaseCompleted          = "completed"
	PhaseCancelled          = "cancelled"
	PhaseFailed             = "failed"
)

func attackingPhase(d entity.Domain) string {
	if d == entity.DomainBluetooth {
		return PhaseAttackingBluetooth
	}
	return PhaseAttackingWifi
}

// CycleOrchestrator runs the discover, attack, persist, wait loop. Attacks
// run one at a time, Wi-Fi before Bluetooth.
type CycleOrchestrator struct {
	rc          *config.RunContext
	scanners    ScannerFactory
	planner     planner.Planner
	assessor    assessor.Assessor
	reporter    reporter.Reporter
	provisioner Provisioner
	metrics     *metrics.Metrics
	config      OrchestratorConfig
	log         *logrus.Entry

	wait         func(ctx context.Context, d time.Duration) error
	onTransition func(OrchestrationStatus)

	mu      sync.Mutex
	status  OrchestrationStatus
	pending map[entity.Domain][]entity.AttackResult
}

// NewCycleOrchestrator creates a new orchestrator. provisioner and m may be nil.
func NewCycleOrchestrator(
	rc *config.RunContext,
	scanners ScannerFactory,
	planner planner.Planner,
	assessor assessor.Assessor,
	reporter reporter.Reporter,
	provisioner Provisioner,
	m *metrics.Metrics,
	config OrchestratorConfig,
	log *logrus.Entry,
) *CycleOrchestrator {
	return &CycleOrchestrator{
		rc:          rc,
		scanners:    scanners,
		planner:     planner,
		assessor:    assessor,
		reporter:    reporter,
		provisioner: provisioner,
		metrics:     m,
		config:      config,
		log:         log.WithField("component", "orchestrator"),
		wait:        sleep,
		status:      OrchestrationStatus{Phase: PhaseIdle},
		pending:     make(map[entity.Domain][]entity.AttackResult),
	}
}

// WithWait replaces the backoff sleep
func (o *CycleOrchestrator) WithWait(wait func(ctx context.Context, d time.Duration) error) *CycleOrchestrator {
	o.wait = wait
	return o
}

// OnTransition registers a hook called on every phase change
func (o *CycleOrchestrator) OnTransition(fn func(OrchestrationStatus)) *CycleOrchestrator {
	o.onTransition = fn
	return o
}

// Validate checks that the orchestrator can run
func (o *CycleOrchestrator) Validate() error {
	if len(o.rc.EnabledDomains()) == 0 {
		return config.ErrNoDomain()
	}
	if o.scanners == nil {
		return fmt.Errorf("scanner is required but not configured")
	}
	if o.planner == nil {
		return fmt.Errorf("planner is required but not configured")
	}
	if o.assessor == nil {
		return fmt.Errorf("assessor is required but not configured")
	}
	if o.reporter == nil {
		return fmt.Errorf("reporter is required but not configured")
	}
	return nil
}

// Run executes cycles until ctx is cancelled or MaxCycles is reached. Only
// setup problems are returned as errors; cancellation is a normal exit.
func (o *CycleOrchestrator) Run(ctx context.Context) (*OrchestrationResult, error) {
	result := &OrchestrationResult{
		RunID:     o.rc.RunID,
		StartTime: time.Now(),
		Results:   make(map[entity.Domain]int),
	}
	o.mu.Lock()
	o.status.StartTime = result.StartTime
	o.mu.Unlock()

	if err := o.Validate(); err != nil {
		o.updateStatus(PhaseFailed, 0, err.Error())
		return result, err
	}

	iface := o.rc.Interface
	if o.rc.Wifi && o.provisioner != nil {
		o.updateStatus(PhaseProvisioning, 0, "Enabling monitor mode")
		acquired, err := o.provisioner.Acquire(ctx)
		if err != nil {
			o.updateStatus(PhaseFailed, 0, err.Error())
			return result, fmt.Errorf("provisioning failed: %w", err)
		}
		iface = acquired
	}
	result.Interface = iface
	defer o.cleanup(ctx, result)

	disc := o.scanners(iface)
	domains := o.rc.EnabledDomains()

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			break
		}

		o.updateStatus(PhaseDiscovering, cycle, "Discovering targets")
		found := disc.Discover(ctx, domains)
		if ctx.Err() != nil {
			break
		}
		o.observeDiscovery(found, domains)

		if found.Empty() {
			o.log.WithField("cycle", cycle).Info("No targets discovered")
		} else {
			o.attack(ctx, cycle, iface, found, domains)
			if ctx.Err() != nil {
				break
			}
			o.updateStatus(PhasePersisting, cycle, "Persisting results")
			o.persist(ctx, result)
		}

		result.Cycles = cycle
		if o.metrics != nil {
			o.metrics.ObserveCycle()
		}
		if o.config.MaxCycles > 0 && cycle >= o.config.MaxCycles {
			break
		}

		o.updateStatus(PhaseWaiting, cycle, fmt.Sprintf("Waiting %s", o.config.Backoff))
		if err := o.wait(ctx, o.config.Backoff); err != nil {
			break
		}
	}

	if ctx.Err() != nil {
		result.Status = "cancelled"
	} else {
		result.Status = "completed"
	}
	return result, nil
}

func (o *CycleOrchestrator) attack(ctx context.Context, cycle int, iface string, found scanner.Discovery, domains []entity.Domain) {
	opts := classifier.OptionsFromRun(o.rc, iface, cycle)
	for _, d := range domains {
		if ctx.Err() != nil {
			return
		}
		o.updateStatus(attackingPhase(d), cycle, fmt.Sprintf("%d %s targets", found.Count(d), d))

		plan := o.planner.Plan(d, found, o.rc.IsSelected, opts)
		o.log.WithFields(logrus.Fields{
			"domain":    d,
			"cycle":     cycle,
			"jobs":      len(plan.Jobs),
			"estimated": plan.EstimatedRuntime.String(),
		}).Info("Attack plan ready")

		for _, job := range plan.Jobs {
			o.setCurrentJob(job.ID)
			res, err := o.assessor.Execute(ctx, job)
			if err != nil {
				return
			}
			o.reporter.Observe(res)
			o.mu.Lock()
			o.pending[d] = append(o.pending[d], res)
			o.mu.Unlock()
		}
		o.setCurrentJob("")
	}
}

// persist hands every non-empty accumulator to the reporter and clears it.
// Failures are logged and never stop the loop.
func (o *CycleOrchestrator) persist(ctx context.Context, result *OrchestrationResult) {
	for _, d := range entity.Domains {
		o.mu.Lock()
		batch := o.pending[d]
		delete(o.pending, d)
		o.mu.Unlock()
		if len(batch) == 0 {
			continue
		}
		result.Results[d] += len(batch)
		if err := o.reporter.Persist(ctx, d, batch); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("persist %s: %v", d, err))
		}
	}
}

// cleanup stops Bluetooth scanning, releases the interface and flushes the
// partial cycle. It runs on a fresh context so a cancelled run still
// completes it.
func (o *CycleOrchestrator) cleanup(parent context.Context, result *OrchestrationResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.config.CleanupTimeout)
	defer cancel()

	o.updateStatus(PhaseCleanup, result.Cycles, "Cleaning up")
	if o.provisioner != nil {
		if o.rc.Bluetooth {
			o.provisioner.StopBluetooth(ctx)
		}
		if o.rc.Wifi {
			if err := o.provisioner.Release(ctx); err != nil {
				o.log.WithError(err).Warn("Interface release failed")
				result.Errors = append(result.Errors, err.Error())
			}
		}
	}
	o.persist(ctx, result)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	phase := PhaseCompleted
	if parent.Err() != nil {
		phase = PhaseCancelled
	}
	o.updateStatus(phase, result.Cycles, fmt.Sprintf("%d cycles", result.Cycles))
}

func (o *CycleOrchestrator) observeDiscovery(found scanner.Discovery, domains []entity.Domain) {
	if o.metrics == nil {
		return
	}
	for _, d := range domains {
		o.metrics.ObserveDiscovery(d, found.Count(d))
	}
}

// GetStatus returns the current orchestration status
func (o *CycleOrchestrator) GetStatus() OrchestrationStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.status
	if !s.StartTime.IsZero() {
		s.ElapsedTime = time.Since(s.StartTime)
	}
	return s
}

func (o *CycleOrchestrator) updateStatus(phase string, cycle int, message string) {
	o.mu.Lock()
	o.status = OrchestrationStatus{
		Phase:     phase,
		Cycle:     cycle,
		StartTime: o.status.StartTime,
		Message:   message,
	}
	if !o.status.StartTime.IsZero() {
		o.status.ElapsedTime = time.Since(o.status.StartTime)
	}
	s := o.status
	hook := o.onTransition
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{"phase": phase, "cycle": cycle}).Debug(message)
	if hook != nil {
		hook(s)
	}
}

func (o *CycleOrchestrator) setCurrentJob(id string) {
	o.mu.Lock()
	o.status.CurrentJob = id
	o.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsSetupError reports whether err aborted the run before the first cycle
func IsSetupError(err error) bool {
	var ce config.ConfigError
	return errors.As(err, &ce)
}
