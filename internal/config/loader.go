package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader provides functionality to load and validate settings files
type Loader struct {
	basePath string
}

// NewLoader creates a new configuration loader with the specified base path
func NewLoader(basePath string) *Loader {
	if basePath == "" {
		basePath = "."
	}
	return &Loader{
		basePath: basePath,
	}
}

// LoadSettings loads settings from path on top of the defaults. An empty
// path yields the defaults.
func (l *Loader) LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	fullPath := l.resolvePath(path)

	data, err := l.readFile(fullPath)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file %s: %w", fullPath, err)
	}

	// Expand environment variables
	data = l.expandEnvVars(data)

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", fullPath, err)
	}

	l.setSettingsDefaults(&settings)

	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings validation failed for %s: %w", fullPath, err)
	}

	return settings, nil
}

// resolvePath resolves a path relative to the loader's base path
func (l *Loader) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.basePath, path)
}

// readFile reads a file and returns its contents
func (l *Loader) readFile(path string) ([]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}

	return os.ReadFile(path)
}

// expandEnvVars expands environment variables in the configuration data
func (l *Loader) expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// setSettingsDefaults fills fields an explicit zero in the file left empty
func (l *Loader) setSettingsDefaults(s *Settings) {
	def := DefaultSettings()

	if s.Backoff == 0 {
		s.Backoff = def.Backoff
	}
	if s.BluetoothAdapter == "" {
		s.BluetoothAdapter = def.BluetoothAdapter
	}
	if s.BlueDuckyPath == "" {
		s.BlueDuckyPath = def.BlueDuckyPath
	}
	if s.CSVTruncate == 0 {
		s.CSVTruncate = def.CSVTruncate
	}
	if s.Discovery.WPSWindow == 0 {
		s.Discovery.WPSWindow = def.Discovery.WPSWindow
	}
	if s.Discovery.WPAWindow == 0 {
		s.Discovery.WPAWindow = def.Discovery.WPAWindow
	}
	if s.Discovery.ClassicScan == 0 {
		s.Discovery.ClassicScan = def.Discovery.ClassicScan
	}
	if s.Discovery.LEScan == 0 {
		s.Discovery.LEScan = def.Discovery.LEScan
	}
	if s.Discovery.ClassicEnum == 0 {
		s.Discovery.ClassicEnum = def.Discovery.ClassicEnum
	}
	if s.Discovery.LEEnum == 0 {
		s.Discovery.LEEnum = def.Discovery.LEEnum
	}
	if s.Discovery.Command == 0 {
		s.Discovery.Command = def.Discovery.Command
	}
}
