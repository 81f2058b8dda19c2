package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TimestampFormat names run directories and snapshot files
const TimestampFormat = "20060102_150405"

// Options are the inputs collected by the front end
type Options struct {
	Wifi      bool
	Bluetooth bool
	Attacks   []string
	Wordlist  string
	OutDir    string
	Interface string
	Verbose   bool
	NATSURL   string
	Cycles    int
}

// RunContext is created once at startup and only read afterwards
type RunContext struct {
	RunID      string
	Timestamp  string
	StartedAt  time.Time
	OutputDir  string
	CaptureDir string
	LogFile    string

	Wifi      bool
	Bluetooth bool
	Selected  []entity.Attack
	Wordlist  string
	Verbose   bool
	Interface string
	NATSURL   string
	Cycles    int

	Settings Settings
	Log      *logrus.Entry
}

// NewRunContext validates opts and derives the run layout under opts.OutDir
func NewRunContext(opts Options, settings Settings, now time.Time) (*RunContext, error) {
	selected, err := ParseSelection(opts.Attacks)
	if err != nil {
		return nil, err
	}
	if err := ValidateSelection(opts.Wifi, opts.Bluetooth, selected); err != nil {
		return nil, err
	}
	if opts.Wordlist != "" {
		if _, err := os.Stat(opts.Wordlist); err != nil {
			return nil, ErrMissingWordlist(opts.Wordlist)
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	out := opts.OutDir
	if out == "" {
		out = "results"
	}
	ts := now.Format(TimestampFormat)
	dir := filepath.Join(out, ts)

	return &RunContext{
		RunID:      uuid.NewString(),
		Timestamp:  ts,
		StartedAt:  now,
		OutputDir:  dir,
		CaptureDir: filepath.Join(dir, "captures"),
		LogFile:    filepath.Join(dir, "wifiddle.log"),
		Wifi:       opts.Wifi,
		Bluetooth:  opts.Bluetooth,
		Selected:   selected,
		Wordlist:   opts.Wordlist,
		Verbose:    opts.Verbose,
		Interface:  opts.Interface,
		NATSURL:    opts.NATSURL,
		Cycles:     opts.Cycles,
		Settings:   settings,
		Log:        logrus.NewEntry(logrus.StandardLogger()),
	}, nil
}

// Prepare creates the run directories
func (rc *RunContext) Prepare() error {
	if err := os.MkdirAll(rc.CaptureDir, 0o755); err != nil {
		return fmt.Errorf("could not create run directory: %w", err)
	}
	return nil
}

// Enabled reports whether a domain takes part in the run
func (rc *RunContext) Enabled(d entity.Domain) bool {
	switch d {
	case entity.DomainWifi:
		return rc.Wifi
	case entity.DomainBluetooth:
		return rc.Bluetooth
	}
	return false
}

// EnabledDomains returns the enabled domains in dispatch order
func (rc *RunContext) EnabledDomains() []entity.Domain {
	var out []entity.Domain
	for _, d := range entity.Domains {
		if rc.Enabled(d) {
			out = append(out, d)
		}
	}
	return out
}

// IsSelected reports whether the attack was selected. No selection means all.
func (rc *RunContext) IsSelected(a entity.Attack) bool {
	if len(rc.Selected) == 0 {
		return true
	}
	for _, s := range rc.Selected {
		if s == a {
			return true
		}
	}
	return false
}

// ParseSelection maps the user supplied attack names, rejecting unknown ones
func ParseSelection(names []string) ([]entity.Attack, error) {
	seen := map[entity.Attack]bool{}
	var out []entity.Attack
	var unknown []string
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		a, err := entity.ParseAttack(n)
		if err != nil {
			unknown = append(unknown, n)
			continue
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, ErrInvalidSelection("unknown attacks: " + strings.Join(unknown, ", "))
	}
	return out, nil
}

// ValidateSelection rejects runs with no domain and enabled domains left
// without any selected attack of their own.
func ValidateSelection(wifi, bluetooth bool, selected []entity.Attack) error {
	if !wifi && !bluetooth {
		return ErrNoDomain()
	}
	if len(selected) == 0 {
		return nil
	}
	check := func(enabled bool, d entity.Domain) error {
		if !enabled {
			return nil
		}
		for _, a := range selected {
			if a.InDomain(d) {
				return nil
			}
		}
		return ErrInvalidSelection(fmt.Sprintf("%s is enabled but none of its attacks are selected", d))
	}
	if err := check(wifi, entity.DomainWifi); err != nil {
		return err
	}
	return check(bluetooth, entity.DomainBluetooth)
}
