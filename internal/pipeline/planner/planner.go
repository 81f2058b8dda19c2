package planner

import (
	"fmt"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/classifier"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/scanner"
)

// Planner defines the interface for turning a discovery pass into jobs
type Planner interface {
	// Plan creates the ordered job list for one domain of one cycle
	Plan(domain entity.Domain, discovery scanner.Discovery, selected func(entity.Attack) bool, opts classifier.Options) *Plan
}

// Job is one attack module applied to one target
type Job struct {
	ID     string            `json:"id"`
	Domain entity.Domain     `json:"domain"`
	Target entity.Target     `json:"-"`
	Module classifier.Module `json:"module"`
	Steps  []classifier.Step `json:"steps"`
	// Enumerate is set on the first job of each Bluetooth device
	Enumerate bool `json:"enumerate,omitempty"`
}

// Budget sums the timeouts of the job's foreground steps
func (j Job) Budget() time.Duration {
	var d time.Duration
	for _, s := range j.Steps {
		d += s.Spec.Timeout
	}
	return d
}

// Plan is the ordered job list of one domain
type Plan struct {
	Domain           entity.Domain `json:"domain"`
	Cycle            int           `json:"cycle"`
	CreatedAt        time.Time     `json:"created_at"`
	Jobs             []Job         `json:"jobs"`
	EstimatedRuntime time.Duration `json:"estimated_runtime"`
}

// Empty reports whether the plan has no jobs
func (p *Plan) Empty() bool { return p == nil || len(p.Jobs) == 0 }

// SequentialPlanner orders jobs target by target, modules in registry order
type SequentialPlanner struct {
	registry classifier.Classifier
}

// NewSequentialPlanner creates a planner over the given module registry
func NewSequentialPlanner(registry classifier.Classifier) *SequentialPlanner {
	return &SequentialPlanner{registry: registry}
}

// Plan builds the jobs for a domain. Wi-Fi targets are ordered WPS networks,
// WPA networks, then one sweep; Bluetooth targets are devices then one sweep.
// Sweeps only carry aggregate modules and are dropped when none are selected.
func (p *SequentialPlanner) Plan(domain entity.Domain, discovery scanner.Discovery, selected func(entity.Attack) bool, opts classifier.Options) *Plan {
	plan := &Plan{Domain: domain, Cycle: opts.Cycle, CreatedAt: time.Now()}

	for _, target := range targets(domain, discovery, opts) {
		first := true
		for _, m := range p.registry.Select(target, selected) {
			job := Job{
				ID:     fmt.Sprintf("%s/%03d/%s/%s", domain, opts.Cycle, m.Attack, target.ID()),
				Domain: domain,
				Target: target,
				Module: m,
				Steps:  m.Invocation(target, opts),
			}
			if _, ok := target.(entity.BluetoothDevice); ok && first {
				job.Enumerate = true
			}
			first = false
			plan.Jobs = append(plan.Jobs, job)
			plan.EstimatedRuntime += job.Budget()
		}
	}
	return plan
}

func targets(domain entity.Domain, d scanner.Discovery, opts classifier.Options) []entity.Target {
	var out []entity.Target
	switch domain {
	case entity.DomainWifi:
		for _, n := range d.Wifi.WPS {
			out = append(out, n)
		}
		for _, n := range d.Wifi.WPA {
			out = append(out, n)
		}
		out = append(out, entity.Sweep{Scope: entity.DomainWifi, Interface: opts.Interface})
	case entity.DomainBluetooth:
		for _, dev := range d.Devices {
			out = append(out, dev)
		}
		out = append(out, entity.Sweep{Scope: entity.DomainBluetooth, Interface: opts.Adapter})
	}
	return out
}
