package entity

import (
	"fmt"
	"strings"
)

// Domain identifies one of the two radio families a run can cover
type Domain string

const (
	DomainWifi      Domain = "wifi"
	DomainBluetooth Domain = "bluetooth"
)

// Domains lists every domain in dispatch order
var Domains = []Domain{DomainWifi, DomainBluetooth}

// Target is a discovered attack target. The set of implementations is closed.
type Target interface {
	// ID returns the identity of the target (BSSID, MAC or interface)
	ID() string
	// Label returns a human readable name
	Label() string
	// Domain returns the domain the target belongs to
	Domain() Domain

	isTarget()
}

// Capability is the attack surface a Wi-Fi network was discovered through
type Capability string

const (
	CapabilityWPS Capability = "wps"
	CapabilityWPA Capability = "wpa"
)

// WifiNetwork represents an access point found during discovery
type WifiNetwork struct {
	BSSID      string     `json:"bssid"`
	ESSID      string     `json:"essid"`
	Channel    int        `json:"channel"`
	Power      int        `json:"power,omitempty"`
	Capability Capability `json:"capability"`
	Clients    int        `json:"clients,omitempty"`
}

func (n WifiNetwork) ID() string     { return n.BSSID }
func (n WifiNetwork) Label() string  { return labelOr(n.ESSID, n.BSSID) }
func (n WifiNetwork) Domain() Domain { return DomainWifi }
func (WifiNetwork) isTarget()        {}

func (n WifiNetwork) String() string {
	return fmt.Sprintf("%s (%s, ch %d, %s)", n.Label(), n.BSSID, n.Channel, n.Capability)
}

// Transport is the Bluetooth transport family of a device
type Transport string

const (
	TransportClassic Transport = "classic"
	TransportLE      Transport = "le"
)

// BluetoothDevice represents a Bluetooth Classic or LE device found during discovery
type BluetoothDevice struct {
	MAC       string    `json:"mac"`
	Name      string    `json:"name"`
	Transport Transport `json:"transport"`
}

func (d BluetoothDevice) ID() string     { return d.MAC }
func (d BluetoothDevice) Label() string  { return labelOr(d.Name, d.MAC) }
func (d BluetoothDevice) Domain() Domain { return DomainBluetooth }
func (BluetoothDevice) isTarget()        {}

func (d BluetoothDevice) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.Label(), d.MAC, d.Transport)
}

// Sweep targets a whole domain through one interface. Aggregate tools
// such as wifite and kismet run against a sweep instead of a single target.
type Sweep struct {
	Scope     Domain `json:"scope"`
	Interface string `json:"interface"`
}

func (s Sweep) ID() string     { return s.Interface }
func (s Sweep) Label() string  { return string(s.Scope) + " sweep" }
func (s Sweep) Domain() Domain { return s.Scope }
func (Sweep) isTarget()        {}

// NormalizeMAC upper-cases a MAC or BSSID so identities compare equal
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}

func labelOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
