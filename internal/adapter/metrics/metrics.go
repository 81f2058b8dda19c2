package metrics

import (
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the run counters on a private registry
type Metrics struct {
	registry *prometheus.Registry

	attacks     *prometheus.CounterVec
	credentials *prometheus.CounterVec
	discovered  *prometheus.GaugeVec
	cycles      prometheus.Counter
	writeErrors *prometheus.CounterVec
}

// New creates and registers the run metrics
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wifiddle_attacks_total",
				Help: "Attack dispatches by domain, attack and outcome",
			},
			[]string{"domain", "attack", "outcome"},
		),
		credentials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wifiddle_credentials_total",
				Help: "Recovered PINs, keys and credential records",
			},
			[]string{"domain", "attack"},
		),
		discovered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wifiddle_targets_discovered",
				Help: "Targets found by the last discovery pass",
			},
			[]string{"domain"},
		),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wifiddle_cycles_total",
			Help: "Completed discovery passes",
		}),
		writeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wifiddle_snapshot_errors_total",
				Help: "Failed snapshot writes by domain and format",
			},
			[]string{"domain", "format"},
		),
	}
	m.registry.MustRegister(m.attacks, m.credentials, m.discovered, m.cycles, m.writeErrors)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveResult counts one attack result
func (m *Metrics) ObserveResult(r entity.AttackResult) {
	outcome := "failure"
	if r.Success {
		outcome = "success"
	}
	m.attacks.WithLabelValues(string(r.Domain), string(r.Attack), outcome).Inc()

	found := len(r.Credentials)
	if r.Extracted[entity.KeyPIN] != "" {
		found++
	}
	if k := r.Extracted[entity.KeyKey]; k != "" && k != entity.ValueUnavailable {
		found++
	}
	if found > 0 {
		m.credentials.WithLabelValues(string(r.Domain), string(r.Attack)).Add(float64(found))
	}
}

// ObserveDiscovery records the target count of a domain
func (m *Metrics) ObserveDiscovery(domain entity.Domain, n int) {
	m.discovered.WithLabelValues(string(domain)).Set(float64(n))
}

// ObserveCycle counts a finished discovery pass
func (m *Metrics) ObserveCycle() { m.cycles.Inc() }

// ObserveWriteError counts a failed snapshot write
func (m *Metrics) ObserveWriteError(domain entity.Domain, format string) {
	m.writeErrors.WithLabelValues(string(domain), format).Inc()
}

// WriteTextfile dumps the registry in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
