package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
)

// Provisioner defines the interface for radio lifecycle management
type Provisioner interface {
	// Acquire puts the Wi-Fi interface into monitor mode and returns its name
	Acquire(ctx context.Context) (string, error)

	// Release returns the monitor interface to managed mode
	Release(ctx context.Context) error

	// StopBluetooth ends any Bluetooth scan left running
	StopBluetooth(ctx context.Context)

	// GetProvisioningStatus returns the current provisioning status
	GetProvisioningStatus() ProvisioningStatus
}

// ProvisioningStatus represents the current provisioning status
type ProvisioningStatus struct {
	Phase     string `json:"phase"` // idle, ready, released, error
	Interface string `json:"interface,omitempty"`
	Monitor   string `json:"monitor,omitempty"`
	Error     string `json:"error,omitempty"`
}

var (
	ifaceRe   = regexp.MustCompile(`Interface (\w+)`)
	monitorRe = regexp.MustCompile(`Interface (\w*mon)\b`)
)

// InterfaceProvisioner drives airmon-ng and bluetoothctl
type InterfaceProvisioner struct {
	exec      cliexec.Executor
	settings  config.Settings
	requested string
	log       *logrus.Entry

	mu     sync.Mutex
	status ProvisioningStatus
}

// NewInterfaceProvisioner creates a provisioner. An empty requested
// interface is detected from iw dev.
func NewInterfaceProvisioner(exec cliexec.Executor, settings config.Settings, requested string, log *logrus.Entry) *InterfaceProvisioner {
	return &InterfaceProvisioner{
		exec:      exec,
		settings:  settings,
		requested: requested,
		log:       log.WithField("component", "provisioner"),
		status:    ProvisioningStatus{Phase: "idle"},
	}
}

// Acquire detects the interface and starts monitor mode on it. A requested
// interface must be listed by iw dev. The monitor interface reported by iw
// dev afterwards is preferred; the original name is used when none shows up.
func (p *InterfaceProvisioner) Acquire(ctx context.Context) (string, error) {
	out := p.exec.Run(ctx, p.spec("iw", "dev"))
	if !out.Clean() {
		return "", p.fail(config.ErrNoInterface(fmt.Sprintf("iw dev %s: %s", out.Status, strings.TrimSpace(out.Stderr))))
	}

	iface := p.requested
	if iface == "" {
		m := ifaceRe.FindStringSubmatch(out.Stdout)
		if m == nil {
			return "", p.fail(config.ErrNoInterface("no wireless interface found"))
		}
		iface = m[1]
	} else if !listed(out.Stdout, iface) {
		return "", p.fail(config.ErrNoInterface(fmt.Sprintf("wireless interface %q not found", iface)))
	}

	if out := p.exec.Run(ctx, p.spec("airmon-ng", "start", iface)); out.Status != entity.CommandOk {
		p.log.WithField("interface", iface).WithField("stderr", strings.TrimSpace(out.Stderr)).Warn("airmon-ng start reported a problem")
	}

	monitor := iface
	if out := p.exec.Run(ctx, p.spec("iw", "dev")); out.Status == entity.CommandOk {
		if m := monitorRe.FindStringSubmatch(out.Stdout); m != nil {
			monitor = m[1]
		}
	}

	p.setStatus(ProvisioningStatus{Phase: "ready", Interface: iface, Monitor: monitor})
	p.log.WithFields(logrus.Fields{"interface": iface, "monitor": monitor}).Info("Monitor mode enabled")
	return monitor, nil
}

// Release stops monitor mode. It does nothing when nothing was acquired.
func (p *InterfaceProvisioner) Release(ctx context.Context) error {
	p.mu.Lock()
	st := p.status
	p.mu.Unlock()
	if st.Phase != "ready" {
		return nil
	}

	out := p.exec.Run(ctx, p.spec("airmon-ng", "stop", st.Monitor))
	if out.Status != entity.CommandOk {
		err := fmt.Errorf("airmon-ng stop %s: %s %s", st.Monitor, out.Status, strings.TrimSpace(out.Stderr))
		p.setStatus(ProvisioningStatus{Phase: "error", Interface: st.Interface, Monitor: st.Monitor, Error: err.Error()})
		return err
	}
	p.setStatus(ProvisioningStatus{Phase: "released", Interface: st.Interface})
	p.log.WithField("monitor", st.Monitor).Info("Monitor mode disabled")
	return nil
}

// StopBluetooth turns discovery off, best effort
func (p *InterfaceProvisioner) StopBluetooth(ctx context.Context) {
	if out := p.exec.Run(ctx, p.spec("bluetoothctl", "scan", "off")); !out.Clean() {
		p.log.WithField("status", out.Status).Debug("bluetoothctl scan off did not complete cleanly")
	}
}

// GetProvisioningStatus returns the current provisioning status
func (p *InterfaceProvisioner) GetProvisioningStatus() ProvisioningStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *InterfaceProvisioner) fail(err error) error {
	p.setStatus(ProvisioningStatus{Phase: "error", Error: err.Error()})
	return err
}

// listed reports whether iw dev output names iface
func listed(iwDev, iface string) bool {
	for _, m := range ifaceRe.FindAllStringSubmatch(iwDev, -1) {
		if m[1] == iface {
			return true
		}
	}
	return false
}

func (p *InterfaceProvisioner) setStatus(s ProvisioningStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *InterfaceProvisioner) spec(tool string, args ...string) entity.CommandSpec {
	return entity.CommandSpec{
		Name:    tool,
		Path:    p.settings.Tool(tool),
		Args:    args,
		Timeout: p.settings.Discovery.Command,
	}
}

// MockProvisioner provides a mock implementation for testing
type MockProvisioner struct {
	mu      sync.Mutex
	iface   string
	error   error
	status  ProvisioningStatus
	Actions []string
}

// NewMockProvisioner creates a new mock provisioner handing out iface
func NewMockProvisioner(iface string) *MockProvisioner {
	return &MockProvisioner{iface: iface, status: ProvisioningStatus{Phase: "idle"}}
}

// WithError makes Acquire fail
func (m *MockProvisioner) WithError(err error) *MockProvisioner {
	m.error = err
	return m
}

// Acquire implements Provisioner interface
func (m *MockProvisioner) Acquire(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, "acquire")
	if m.error != nil {
		m.status.Phase = "error"
		return "", m.error
	}
	m.status = ProvisioningStatus{Phase: "ready", Interface: m.iface, Monitor: m.iface}
	return m.iface, nil
}

// Release implements Provisioner interface
func (m *MockProvisioner) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, "release")
	m.status.Phase = "released"
	return nil
}

// StopBluetooth implements Provisioner interface
func (m *MockProvisioner) StopBluetooth(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, "bluetooth_off")
}

// GetProvisioningStatus implements Provisioner interface
func (m *MockProvisioner) GetProvisioningStatus() ProvisioningStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Recorded returns a copy of the calls made so far
func (m *MockProvisioner) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Actions...)
}
