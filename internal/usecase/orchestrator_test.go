package usecase

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/jsonreport"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/metrics"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/assessor"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/classifier"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/planner"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/reporter"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/scanner"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newRunContext(t *testing.T, opts config.Options) *config.RunContext {
	t.Helper()
	opts.OutDir = t.TempDir()
	rc, err := config.NewRunContext(opts, config.DefaultSettings(), time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, rc.Prepare())
	return rc
}

func fixedScanner(s scanner.Scanner) ScannerFactory {
	return func(string) scanner.Scanner { return s }
}

type waits struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (w *waits) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.calls = append(w.calls, d)
	w.mu.Unlock()
	return ctx.Err()
}

var (
	homeNet = entity.WifiNetwork{BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "HomeNet", Channel: 6, Capability: entity.CapabilityWPS}
	headset = entity.BluetoothDevice{MAC: "00:1A:7D:DA:71:13", Name: "Headset", Transport: entity.TransportClassic}
)

func TestEmptyDiscoveryWaitsWithoutWriting(t *testing.T) {
	rc := newRunContext(t, config.Options{Wifi: true, Bluetooth: true, Interface: "wlan0mon"})
	scan := scanner.NewMockScanner(scanner.Discovery{})
	exec := cliexec.NewFakeExecutor()
	w := &waits{}

	var phases []string
	cfg := OrchestratorConfigFromRun(rc)
	cfg.MaxCycles = 2
	o := NewCycleOrchestrator(rc, fixedScanner(scan),
		planner.NewSequentialPlanner(classifier.NewRegistry()),
		assessor.NewStepExecutor(exec, scan, testLog()),
		reporter.NewStore(rc, nil, nil, testLog()),
		nil, nil, cfg, testLog()).
		WithWait(w.wait).
		OnTransition(func(s OrchestrationStatus) { phases = append(phases, s.Phase) })

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, scan.Calls())
	assert.Equal(t, []time.Duration{30 * time.Second}, w.calls)
	assert.Empty(t, exec.Calls())
	assert.Equal(t, []string{PhaseDiscovering, PhaseWaiting, PhaseDiscovering, PhaseCleanup, PhaseCompleted}, phases)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 2, res.Cycles)

	entries, err := os.ReadDir(rc.OutputDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir(), "unexpected file %s", e.Name())
	}
}

func TestCycleRunsWifiBeforeBluetoothAndSurvivesFailures(t *testing.T) {
	rc := newRunContext(t, config.Options{
		Wifi: true, Bluetooth: true, Interface: "wlan0mon",
		Attacks: []string{"pixiedust", "blueducky"},
	})
	scan := scanner.NewMockScanner(scanner.Discovery{
		Wifi:    scanner.WifiResult{WPS: []entity.WifiNetwork{homeNet}},
		Devices: []entity.BluetoothDevice{headset},
	})
	exec := cliexec.NewFakeExecutor().
		On("reaver", entity.CommandOutput{Status: entity.CommandFailed, Stderr: "exec: \"reaver\": executable file not found in $PATH"}).
		On("python3", entity.CommandOutput{Status: entity.CommandOk, Stdout: "payload sent"})
	m := metrics.New()
	store := reporter.NewStore(rc, m, nil, testLog())

	cfg := OrchestratorConfigFromRun(rc)
	cfg.MaxCycles = 2
	o := NewCycleOrchestrator(rc, fixedScanner(scan),
		planner.NewSequentialPlanner(classifier.NewRegistry()),
		assessor.NewStepExecutor(exec, scan, testLog()),
		store, nil, m, cfg, testLog()).
		WithWait((&waits{}).wait)

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	var order []string
	for _, c := range exec.Calls() {
		if c.Name == "reaver" || c.Name == "python3" {
			order = append(order, c.Name)
		}
	}
	assert.Equal(t, []string{"reaver", "python3", "reaver", "python3"}, order)
	assert.Equal(t, []string{headset.MAC, headset.MAC}, scan.Enumerated)

	assert.Equal(t, 2, res.Results[entity.DomainWifi])
	assert.Equal(t, 2, res.Results[entity.DomainBluetooth])

	wifi, err := jsonreport.Load(store.Summary(entity.DomainWifi).JSONPath)
	require.NoError(t, err)
	require.Len(t, wifi.Results, 2, "history accumulates across cycles")
	assert.False(t, wifi.Results[0].Success)

	bt := store.History(entity.DomainBluetooth)
	require.Len(t, bt, 2)
	assert.True(t, bt[0].Success)
	assert.Equal(t, "hid-injection-attempted", bt[0].Extracted[entity.KeyPayload])
}

type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.log = append(e.log, s)
	e.mu.Unlock()
}

type recordingProvisioner struct{ ev *events }

func (p recordingProvisioner) Acquire(context.Context) (string, error) {
	p.ev.add("acquire")
	return "wlan0mon", nil
}

func (p recordingProvisioner) Release(ctx context.Context) error {
	p.ev.add("release")
	return ctx.Err()
}

func (p recordingProvisioner) StopBluetooth(ctx context.Context) { p.ev.add("scan_off") }

func (p recordingProvisioner) GetProvisioningStatus() ProvisioningStatus {
	return ProvisioningStatus{Phase: "ready"}
}

type recordingReporter struct {
	ev        *events
	persisted map[entity.Domain]int
}

func (r *recordingReporter) Observe(entity.AttackResult) {}

func (r *recordingReporter) Persist(ctx context.Context, d entity.Domain, results []entity.AttackResult) error {
	r.ev.add("persist_" + string(d))
	r.persisted[d] += len(results)
	return ctx.Err()
}

// cancellingAssessor cancels the run after it produced n results
type cancellingAssessor struct {
	n      int
	cancel context.CancelFunc
	ran    int
}

func (a *cancellingAssessor) Execute(ctx context.Context, job planner.Job) (entity.AttackResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.AttackResult{}, err
	}
	a.ran++
	if a.ran == a.n {
		a.cancel()
	}
	return entity.AttackResult{ID: job.ID, Attack: job.Module.Attack, Domain: job.Domain, Extracted: map[string]string{}}, nil
}

func TestCancellationCleansUpThenFlushes(t *testing.T) {
	rc := newRunContext(t, config.Options{Wifi: true, Bluetooth: true})
	scan := scanner.NewMockScanner(scanner.Discovery{
		Wifi:    scanner.WifiResult{WPS: []entity.WifiNetwork{homeNet}},
		Devices: []entity.BluetoothDevice{headset},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ev := &events{}
	rep := &recordingReporter{ev: ev, persisted: map[entity.Domain]int{}}
	as := &cancellingAssessor{n: 2, cancel: cancel}

	o := NewCycleOrchestrator(rc, fixedScanner(scan),
		planner.NewSequentialPlanner(classifier.NewRegistry()),
		as, rep, recordingProvisioner{ev: ev}, nil, OrchestratorConfigFromRun(rc), testLog())

	res, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "cancelled", res.Status)
	assert.Equal(t, 2, as.ran, "no job starts after cancellation")
	assert.Equal(t, []string{"acquire", "scan_off", "release", "persist_wifi"}, ev.log)
	assert.Equal(t, 2, rep.persisted[entity.DomainWifi])
	assert.Equal(t, PhaseCancelled, o.GetStatus().Phase)
}

func TestProvisioningFailureIsSetupFatal(t *testing.T) {
	rc := newRunContext(t, config.Options{Wifi: true})
	scan := scanner.NewMockScanner()
	prov := NewMockProvisioner("").WithError(config.ErrNoInterface("no wireless interface found"))

	o := NewCycleOrchestrator(rc, fixedScanner(scan),
		planner.NewSequentialPlanner(classifier.NewRegistry()),
		assessor.NewStepExecutor(cliexec.NewFakeExecutor(), nil, testLog()),
		reporter.NewStore(rc, nil, nil, testLog()),
		prov, nil, OrchestratorConfigFromRun(rc), testLog())

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsSetupError(err))
	assert.Zero(t, scan.Calls())
	assert.Equal(t, []string{"acquire"}, prov.Recorded())
	assert.Equal(t, PhaseFailed, o.GetStatus().Phase)
}

func TestBluetoothOnlyRunSkipsInterface(t *testing.T) {
	rc := newRunContext(t, config.Options{Bluetooth: true})
	scan := scanner.NewMockScanner(scanner.Discovery{})
	prov := NewMockProvisioner("wlan0mon")

	cfg := OrchestratorConfigFromRun(rc)
	cfg.MaxCycles = 1
	o := NewCycleOrchestrator(rc, fixedScanner(scan),
		planner.NewSequentialPlanner(classifier.NewRegistry()),
		assessor.NewStepExecutor(cliexec.NewFakeExecutor(), nil, testLog()),
		reporter.NewStore(rc, nil, nil, testLog()),
		prov, nil, cfg, testLog())

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Interface)
	assert.Equal(t, []string{"bluetooth_off"}, prov.Recorded())
}
