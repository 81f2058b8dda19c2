package csvreport

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

// DefaultTruncate bounds free-text columns
const DefaultTruncate = 256

// Leaf kinds of a row
const (
	KindTarget     = "target"
	KindCredential = "credential"
	KindNetwork    = "network"
	KindDevice     = "device"
)

// Columns is the header row
var Columns = []string{
	"timestamp", "domain", "attack", "target_id", "target_name", "success",
	"kind", "entity_id", "entity_name", "secret", "extracted", "raw_output",
}

// Writer writes the flattened record file of a domain
type Writer struct {
	OutDir   string
	Truncate int
}

func New(out string, truncate int) *Writer {
	if truncate <= 0 {
		truncate = DefaultTruncate
	}
	return &Writer{OutDir: out, Truncate: truncate}
}

// Path returns the record file of a domain
func (w *Writer) Path(domain entity.Domain, timestamp string) string {
	return filepath.Join(w.OutDir, fmt.Sprintf("%s_results_%s.csv", domain, timestamp))
}

// Save replaces the domain file with one row per leaf entity of results
func (w *Writer) Save(domain entity.Domain, timestamp string, results []entity.AttackResult) (string, error) {
	path := w.Path(domain, timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".records-*")
	if err != nil {
		return path, err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	cw := csv.NewWriter(f)
	if err := cw.Write(Columns); err != nil {
		f.Close()
		return path, err
	}
	for _, r := range results {
		if err := cw.WriteAll(w.Rows(r)); err != nil {
			f.Close()
			return path, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return path, err
	}
	if err := f.Close(); err != nil {
		return path, err
	}
	return path, os.Rename(tmp, path)
}

// Rows flattens one result. Credentials, networks and devices each get a
// row; a result without any gets a single target row.
func (w *Writer) Rows(r entity.AttackResult) [][]string {
	base := []string{
		r.Timestamp.Format(time.RFC3339),
		string(r.Domain),
		string(r.Attack),
		r.TargetID,
		r.TargetName,
		strconv.FormatBool(r.Success),
	}
	extracted := w.clip(flatten(r.Extracted))
	raw := w.clip(r.RawOutput)

	row := func(kind, id, name, secret string) []string {
		out := make([]string, 0, len(Columns))
		out = append(out, base...)
		return append(out, kind, id, name, secret, extracted, raw)
	}

	var rows [][]string
	for _, c := range r.Credentials {
		rows = append(rows, row(KindCredential, c.BSSID, c.ESSID, c.Password))
	}
	for _, n := range r.Networks {
		rows = append(rows, row(KindNetwork, n.BSSID, n.ESSID, ""))
	}
	for _, d := range r.Devices {
		rows = append(rows, row(KindDevice, d.MAC, d.Name, ""))
	}
	if len(rows) == 0 {
		secret := r.Extracted[entity.KeyKey]
		if secret == "" {
			secret = r.Extracted[entity.KeyPIN]
		}
		rows = append(rows, row(KindTarget, r.TargetID, r.TargetName, secret))
	}
	return rows
}

func (w *Writer) clip(s string) string {
	if utf8.RuneCountInString(s) <= w.Truncate {
		return s
	}
	return string([]rune(s)[:w.Truncate])
}

func flatten(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ";")
}
