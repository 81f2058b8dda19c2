package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

// Settings holds the tunables read from the optional YAML settings file
type Settings struct {
	Discovery        DiscoverySettings `yaml:"discovery" json:"discovery"`
	Timeouts         TimeoutSettings   `yaml:"timeouts" json:"timeouts"`
	Backoff          time.Duration     `yaml:"backoff" json:"backoff"`
	BluetoothAdapter string            `yaml:"bluetooth_adapter" json:"bluetooth_adapter"`
	BlueDuckyPath    string            `yaml:"blueducky_path" json:"blueducky_path"`
	CSVTruncate      int               `yaml:"csv_truncate" json:"csv_truncate"`
	Tools            map[string]string `yaml:"tools" json:"tools,omitempty"`
}

// DiscoverySettings bounds every discovery capture
type DiscoverySettings struct {
	WPSWindow   time.Duration `yaml:"wps_window" json:"wps_window"`
	WPAWindow   time.Duration `yaml:"wpa_window" json:"wpa_window"`
	ClassicScan time.Duration `yaml:"classic_scan" json:"classic_scan"`
	LEScan      time.Duration `yaml:"le_scan" json:"le_scan"`
	ClassicEnum time.Duration `yaml:"classic_enum" json:"classic_enum"`
	LEEnum      time.Duration `yaml:"le_enum" json:"le_enum"`
	Command     time.Duration `yaml:"command" json:"command"`
}

// TimeoutSettings holds the per attack timeouts
type TimeoutSettings struct {
	PixieDust  time.Duration `yaml:"pixiedust" json:"pixiedust"`
	Bruteforce time.Duration `yaml:"bruteforce" json:"bruteforce"`
	Handshake  time.Duration `yaml:"handshake" json:"handshake"`
	PMKID      time.Duration `yaml:"pmkid" json:"pmkid"`
	Wifite     time.Duration `yaml:"wifite" json:"wifite"`
	Kismet     time.Duration `yaml:"kismet" json:"kismet"`
	DoS        time.Duration `yaml:"dos" json:"dos"`
	JustWorks  time.Duration `yaml:"justworks" json:"justworks"`
	BlueDucky  time.Duration `yaml:"blueducky" json:"blueducky"`
	Crack      time.Duration `yaml:"crack" json:"crack"`
}

// DefaultSettings returns the settings used when no file is given
func DefaultSettings() Settings {
	return Settings{
		Discovery: DiscoverySettings{
			WPSWindow:   30 * time.Second,
			WPAWindow:   30 * time.Second,
			ClassicScan: 5 * time.Second,
			LEScan:      5 * time.Second,
			ClassicEnum: 30 * time.Second,
			LEEnum:      20 * time.Second,
			Command:     30 * time.Second,
		},
		Timeouts: TimeoutSettings{
			PixieDust:  60 * time.Second,
			Bruteforce: 60 * time.Second,
			Handshake:  150 * time.Second,
			PMKID:      60 * time.Second,
			Wifite:     300 * time.Second,
			Kismet:     60 * time.Second,
			DoS:        30 * time.Second,
			JustWorks:  30 * time.Second,
			BlueDucky:  30 * time.Second,
			Crack:      300 * time.Second,
		},
		Backoff:          30 * time.Second,
		BluetoothAdapter: "hci0",
		BlueDuckyPath:    "BlueDucky/main.py",
		CSVTruncate:      256,
	}
}

// For returns the timeout of an attack
func (t TimeoutSettings) For(a entity.Attack) time.Duration {
	switch a {
	case entity.AttackPixieDust:
		return t.PixieDust
	case entity.AttackBruteforce:
		return t.Bruteforce
	case entity.AttackHandshake:
		return t.Handshake
	case entity.AttackPMKID:
		return t.PMKID
	case entity.AttackWifite:
		return t.Wifite
	case entity.AttackKismet:
		return t.Kismet
	case entity.AttackDoS:
		return t.DoS
	case entity.AttackJustWorks:
		return t.JustWorks
	case entity.AttackBlueDucky:
		return t.BlueDucky
	}
	return 0
}

// Tool returns the executable configured for a tool name, or the name itself
func (s Settings) Tool(name string) string {
	if p, ok := s.Tools[name]; ok && p != "" {
		return p
	}
	return name
}

// Attack timeouts must fall in this range
const (
	MinAttackTimeout = 10 * time.Second
	MaxAttackTimeout = 300 * time.Second
)

// Validate checks the settings for values the pipeline cannot work with.
// Every window needs a deadline, so zero durations are rejected too.
func (s Settings) Validate() error {
	windows := map[string]time.Duration{
		"discovery.wps_window":   s.Discovery.WPSWindow,
		"discovery.wpa_window":   s.Discovery.WPAWindow,
		"discovery.classic_scan": s.Discovery.ClassicScan,
		"discovery.le_scan":      s.Discovery.LEScan,
		"discovery.classic_enum": s.Discovery.ClassicEnum,
		"discovery.le_enum":      s.Discovery.LEEnum,
		"discovery.command":      s.Discovery.Command,
		"backoff":                s.Backoff,
	}
	for _, name := range sortedKeys(windows) {
		if windows[name] <= 0 {
			return ErrInvalidSettings(fmt.Sprintf("%s must be positive", name))
		}
	}

	attacks := map[string]time.Duration{"timeouts.crack": s.Timeouts.Crack}
	for _, a := range append(entity.Vocabulary(entity.DomainWifi), entity.Vocabulary(entity.DomainBluetooth)...) {
		attacks["timeouts."+string(a)] = s.Timeouts.For(a)
	}
	for _, name := range sortedKeys(attacks) {
		if d := attacks[name]; d < MinAttackTimeout || d > MaxAttackTimeout {
			return ErrInvalidSettings(fmt.Sprintf("%s must be between %s and %s, got %s", name, MinAttackTimeout, MaxAttackTimeout, d))
		}
	}

	if s.CSVTruncate < 0 {
		return ErrInvalidSettings("csv_truncate must not be negative")
	}
	return nil
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
