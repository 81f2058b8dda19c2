package cliexec

import (
	"context"
	"strings"
	"sync"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

// FakeExecutor is an Executor returning canned output, for tests
type FakeExecutor struct {
	mu       sync.Mutex
	rules    []fakeRule
	calls    []entity.CommandSpec
	started  []*FakeProcess
	startErr error
}

type fakeRule struct {
	prefix string
	fn     func(entity.CommandSpec) entity.CommandOutput
}

// NewFakeExecutor creates an executor answering every command with an empty Ok
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// On answers commands whose rendered form starts with prefix. The longest
// matching prefix wins.
func (f *FakeExecutor) On(prefix string, out entity.CommandOutput) *FakeExecutor {
	return f.OnFunc(prefix, func(entity.CommandSpec) entity.CommandOutput { return out })
}

// OnFunc is like On but computes the output from the spec
func (f *FakeExecutor) OnFunc(prefix string, fn func(entity.CommandSpec) entity.CommandOutput) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{prefix: prefix, fn: fn})
	return f
}

// WithStartError makes Start fail
func (f *FakeExecutor) WithStartError(err error) *FakeExecutor {
	f.startErr = err
	return f
}

// Run records the call and returns the matching canned output
func (f *FakeExecutor) Run(ctx context.Context, spec entity.CommandSpec) entity.CommandOutput {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	var match *fakeRule
	line := spec.String()
	for i := range f.rules {
		r := &f.rules[i]
		if strings.HasPrefix(line, r.prefix) && (match == nil || len(r.prefix) > len(match.prefix)) {
			match = r
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return entity.CommandOutput{Status: entity.CommandFailed, Stderr: err.Error(), Err: err}
	}
	if match == nil {
		return entity.CommandOutput{Status: entity.CommandOk}
	}
	return match.fn(spec)
}

// Start records a background process
func (f *FakeExecutor) Start(ctx context.Context, spec entity.CommandSpec) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	p := &FakeProcess{Spec: spec, done: make(chan struct{})}
	f.started = append(f.started, p)
	return p, nil
}

// Calls returns every command run so far, in order
func (f *FakeExecutor) Calls() []entity.CommandSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.CommandSpec, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallLines returns the rendered form of every command run so far
func (f *FakeExecutor) CallLines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Started returns every background process launched so far
func (f *FakeExecutor) Started() []*FakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeProcess, len(f.started))
	copy(out, f.started)
	return out
}

// FakeProcess is a background process that only records Stop
type FakeProcess struct {
	Spec entity.CommandSpec

	once    sync.Once
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// Stop marks the process stopped
func (p *FakeProcess) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Done is closed by Stop
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

// Stopped reports whether Stop was called
func (p *FakeProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
