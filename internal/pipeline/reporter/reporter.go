package reporter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/csvreport"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/jsonreport"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/metrics"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
)

// MetricsFile is the textfile written next to the snapshots
const MetricsFile = "metrics.prom"

// Reporter defines the interface for result persistence
type Reporter interface {
	// Observe is called once for every result as soon as it exists
	Observe(result entity.AttackResult)

	// Persist appends results to the domain history and rewrites its snapshots
	Persist(ctx context.Context, domain entity.Domain, results []entity.AttackResult) error
}

// Publisher streams results to an external bus
type Publisher interface {
	Publish(result entity.AttackResult) error
}

// Summary counts the results of one domain
type Summary struct {
	Domain      entity.Domain `json:"domain"`
	Results     int           `json:"results"`
	Successes   int           `json:"successes"`
	Credentials int           `json:"credentials"`
	JSONPath    string        `json:"json_path,omitempty"`
	CSVPath     string        `json:"csv_path,omitempty"`
}

// Store keeps the cumulative per-domain history of a run and writes it as
// structured and tabular snapshots. Each Persist rewrites both files with
// everything seen so far.
type Store struct {
	runID     string
	timestamp string
	startedAt time.Time
	outDir    string

	json    *jsonreport.Writer
	csv     *csvreport.Writer
	metrics *metrics.Metrics
	bus     Publisher
	log     *logrus.Entry
	now     func() time.Time

	mu       sync.Mutex
	history  map[entity.Domain][]entity.AttackResult
	persists map[entity.Domain]int
	paths    map[entity.Domain][2]string
}

// NewStore creates a store for the run. metrics and bus are optional.
func NewStore(rc *config.RunContext, m *metrics.Metrics, bus Publisher, log *logrus.Entry) *Store {
	return &Store{
		runID:     rc.RunID,
		timestamp: rc.Timestamp,
		startedAt: rc.StartedAt,
		outDir:    rc.OutputDir,
		json:      jsonreport.New(rc.OutputDir),
		csv:       csvreport.New(rc.OutputDir, rc.Settings.CSVTruncate),
		metrics:   m,
		bus:       bus,
		log:       log.WithField("component", "reporter"),
		now:       time.Now,
		history:   make(map[entity.Domain][]entity.AttackResult),
		persists:  make(map[entity.Domain]int),
		paths:     make(map[entity.Domain][2]string),
	}
}

// Observe feeds metrics and the result bus. Bus failures are only logged.
func (s *Store) Observe(r entity.AttackResult) {
	if s.metrics != nil {
		s.metrics.ObserveResult(r)
	}
	if s.bus != nil {
		if err := s.bus.Publish(r); err != nil {
			s.log.WithError(err).WithField("result", r.ID).Warn("Result publish failed")
		}
	}
}

// Persist appends results to the domain history, then rewrites the JSON
// and CSV snapshots of that domain. Write errors are returned after both
// formats were attempted.
func (s *Store) Persist(ctx context.Context, domain entity.Domain, results []entity.AttackResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.history[domain] = append(s.history[domain], results...)
	s.persists[domain]++
	all := make([]entity.AttackResult, len(s.history[domain]))
	copy(all, s.history[domain])
	cycle := s.persists[domain]
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"domain": domain, "new": len(results), "total": len(all)})

	var errs []error
	jsonPath, err := s.json.Save(jsonreport.Snapshot{
		Run: jsonreport.Header{
			RunID:     s.runID,
			Domain:    domain,
			Timestamp: s.timestamp,
			StartedAt: s.startedAt,
			UpdatedAt: s.now(),
			Cycle:     cycle,
		},
		Results: all,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("json snapshot: %w", err))
		s.writeFailed(domain, "json")
	}

	csvPath, err := s.csv.Save(domain, s.timestamp, all)
	if err != nil {
		errs = append(errs, fmt.Errorf("csv snapshot: %w", err))
		s.writeFailed(domain, "csv")
	}

	s.mu.Lock()
	s.paths[domain] = [2]string{jsonPath, csvPath}
	s.mu.Unlock()

	if s.metrics != nil {
		if err := s.metrics.WriteTextfile(filepath.Join(s.outDir, MetricsFile)); err != nil {
			log.WithError(err).Warn("Metrics textfile write failed")
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.WithError(err).Error("Snapshot write failed")
		return err
	}
	log.WithFields(logrus.Fields{"json": jsonPath, "csv": csvPath}).Info("Results persisted")
	return nil
}

func (s *Store) writeFailed(domain entity.Domain, format string) {
	if s.metrics != nil {
		s.metrics.ObserveWriteError(domain, format)
	}
}

// History returns a copy of every result persisted for a domain
func (s *Store) History(domain entity.Domain) []entity.AttackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.AttackResult, len(s.history[domain]))
	copy(out, s.history[domain])
	return out
}

// Summary counts the persisted results of a domain
func (s *Store) Summary(domain entity.Domain) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Domain: domain, Results: len(s.history[domain])}
	if p, ok := s.paths[domain]; ok {
		sum.JSONPath, sum.CSVPath = p[0], p[1]
	}
	for _, r := range s.history[domain] {
		if r.Success {
			sum.Successes++
		}
		sum.Credentials += len(r.Credentials)
		if r.Extracted[entity.KeyPIN] != "" {
			sum.Credentials++
		}
		if k := r.Extracted[entity.KeyKey]; k != "" && k != entity.ValueUnavailable {
			sum.Credentials++
		}
	}
	return sum
}
