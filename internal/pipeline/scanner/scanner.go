package scanner

import (
	"context"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
)

// Scanner defines the interface for target discovery
type Scanner interface {
	// Discover runs one discovery pass over the given domains
	Discover(ctx context.Context, domains []entity.Domain) Discovery

	// Enumerate lists services of a Bluetooth device before it is attacked
	Enumerate(ctx context.Context, dev entity.BluetoothDevice) (string, error)
}

// WifiDiscoverer finds WPS and WPA networks
type WifiDiscoverer interface {
	Discover(ctx context.Context) WifiResult
}

// BluetoothDiscoverer finds Classic and LE devices
type BluetoothDiscoverer interface {
	Discover(ctx context.Context) []entity.BluetoothDevice
	Enumerate(ctx context.Context, dev entity.BluetoothDevice) (string, error)
}

// WifiResult holds the two Wi-Fi discovery sets
type WifiResult struct {
	WPS []entity.WifiNetwork `json:"wps"`
	WPA []entity.WifiNetwork `json:"wpa"`
}

// Discovery contains the results of one discovery pass
type Discovery struct {
	Wifi      WifiResult               `json:"wifi"`
	Devices   []entity.BluetoothDevice `json:"devices"`
	StartTime time.Time                `json:"start_time"`
	EndTime   time.Time                `json:"end_time"`
	Duration  time.Duration            `json:"duration"`
}

// Count returns the number of targets found in a domain
func (d Discovery) Count(domain entity.Domain) int {
	switch domain {
	case entity.DomainWifi:
		return len(d.Wifi.WPS) + len(d.Wifi.WPA)
	case entity.DomainBluetooth:
		return len(d.Devices)
	}
	return 0
}

// Empty reports whether nothing was found in any domain
func (d Discovery) Empty() bool {
	return d.Count(entity.DomainWifi) == 0 && d.Count(entity.DomainBluetooth) == 0
}

// CoordinatingScanner dispatches discovery to the per-domain discoverers
type CoordinatingScanner struct {
	wifi      WifiDiscoverer
	bluetooth BluetoothDiscoverer
	log       *logrus.Entry
}

// NewCoordinatingScanner creates a scanner. A nil discoverer disables its domain.
func NewCoordinatingScanner(log *logrus.Entry, wifi WifiDiscoverer, bluetooth BluetoothDiscoverer) *CoordinatingScanner {
	return &CoordinatingScanner{
		wifi:      wifi,
		bluetooth: bluetooth,
		log:       log.WithField("component", "scanner"),
	}
}

// Discover performs discovery for every requested domain, Wi-Fi first
func (s *CoordinatingScanner) Discover(ctx context.Context, domains []entity.Domain) Discovery {
	d := Discovery{StartTime: time.Now()}

	for _, domain := range domains {
		if ctx.Err() != nil {
			break
		}
		switch domain {
		case entity.DomainWifi:
			if s.wifi != nil {
				d.Wifi = s.wifi.Discover(ctx)
			}
		case entity.DomainBluetooth:
			if s.bluetooth != nil {
				d.Devices = s.bluetooth.Discover(ctx)
			}
		}
	}

	d.EndTime = time.Now()
	d.Duration = d.EndTime.Sub(d.StartTime)

	s.log.WithFields(logrus.Fields{
		"wps":      len(d.Wifi.WPS),
		"wpa":      len(d.Wifi.WPA),
		"devices":  len(d.Devices),
		"duration": d.Duration.Round(time.Millisecond).String(),
	}).Info("Discovery finished")
	return d
}

// Enumerate forwards to the Bluetooth discoverer
func (s *CoordinatingScanner) Enumerate(ctx context.Context, dev entity.BluetoothDevice) (string, error) {
	if s.bluetooth == nil {
		return "", nil
	}
	return s.bluetooth.Enumerate(ctx, dev)
}

// MockScanner is a mock implementation for testing
type MockScanner struct {
	discoveries []Discovery
	calls       int
	enumErr     error
	Enumerated  []string
}

// NewMockScanner creates a new mock scanner returning the given passes in order.
// The last pass repeats once the list is exhausted.
func NewMockScanner(passes ...Discovery) *MockScanner {
	return &MockScanner{discoveries: passes}
}

// WithEnumerateError makes every enumeration fail
func (m *MockScanner) WithEnumerateError(err error) *MockScanner {
	m.enumErr = err
	return m
}

// Calls returns how many discovery passes ran
func (m *MockScanner) Calls() int { return m.calls }

// Discover returns the next canned pass
func (m *MockScanner) Discover(ctx context.Context, domains []entity.Domain) Discovery {
	m.calls++
	if len(m.discoveries) == 0 {
		return Discovery{}
	}
	i := min(m.calls-1, len(m.discoveries)-1)
	return m.discoveries[i]
}

// Enumerate records the device
func (m *MockScanner) Enumerate(ctx context.Context, dev entity.BluetoothDevice) (string, error) {
	m.Enumerated = append(m.Enumerated, dev.MAC)
	return "", m.enumErr
}
