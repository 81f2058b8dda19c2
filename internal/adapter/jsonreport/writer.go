package jsonreport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

// Version of the snapshot layout
const Version = "1.0"

// Header describes the run a snapshot belongs to
type Header struct {
	Version   string        `json:"version"`
	RunID     string        `json:"run_id"`
	Domain    entity.Domain `json:"domain"`
	Timestamp string        `json:"timestamp"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Cycle     int           `json:"cycle"`
	Count     int           `json:"count"`
}

// Snapshot is the full-fidelity record file of one domain
type Snapshot struct {
	Run     Header                `json:"run"`
	Results []entity.AttackResult `json:"results"`
}

// Writer writes snapshots under a run directory
type Writer struct {
	OutDir string // e.g., ./results/20250101_120000
}

func New(out string) *Writer { return &Writer{OutDir: out} }

// Path returns the snapshot file of a domain
func (w *Writer) Path(domain entity.Domain, timestamp string) string {
	return filepath.Join(w.OutDir, fmt.Sprintf("%s_results_%s.json", domain, timestamp))
}

// Save replaces the domain snapshot with snap and returns its path
func (w *Writer) Save(snap Snapshot) (string, error) {
	snap.Run.Version = Version
	snap.Run.Count = len(snap.Results)
	if snap.Results == nil {
		snap.Results = []entity.AttackResult{}
	}
	path := w.Path(snap.Run.Domain, snap.Run.Timestamp)
	return path, writeJSON(path, snap)
}

// Load reads a snapshot back
func Load(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
