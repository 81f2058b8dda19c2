package parser

import (
	"regexp"
	"strings"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

var (
	wpsPinRe   = regexp.MustCompile(`(?i)\b(?:WPS\s+)?PIN(?:\s*:|\s+is)\s*['"]?(\d{4,8})['"]?`)
	wpsKeyRe   = regexp.MustCompile(`(?im)\b(?:WPA\s+PSK|password|passphrase|key)\s*[:=]\s*['"]?([^'"\r\n]+?)['"]?\s*$`)
	crackKeyRe = regexp.MustCompile(`KEY FOUND!\s*\[\s*(.+?)\s*\]`)

	captureErrRe = regexp.MustCompile(`(?i)\b(?:error|failed|no such device|operation not permitted|not supported)\b`)

	wifiteFailRe  = regexp.MustCompile(`(?m)^\s*\[!\]\s*(?i:error)|Traceback \(most recent call last\)`)
	wifitePassRe  = regexp.MustCompile(`(?i)\b(?:password|psk|key)\b(?:\s*\([^)]*\))?\s*[:=]?\s*['"]?([^'"\s]+)`)
	wifiteEssidRe = regexp.MustCompile(`(?i)\bessid\b\s*[:=]?\s*(?:"([^"]*)"|'([^']*)'|([^\s,;]+))`)

	kismetNewRe  = regexp.MustCompile(`(?i)\bdetected new\b`)
	kismetSSIDRe = regexp.MustCompile(`(?i)([0-9A-F]{2}(?::[0-9A-F]{2}){5})\s+advertising SSID\s+'([^']*)'`)
	quotedRe     = regexp.MustCompile(`'([^']+)'`)
)

// WPS parses pixiedust and bruteforce output. A PIN marker means success;
// a companion passphrase marker fills the key.
func WPS(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)
	text := raw.Stdout()

	pin, ok := firstSubmatch(wpsPinRe, text)
	if !ok {
		return res
	}
	res.Success = true
	res.Extracted[entity.KeyPIN] = pin
	if key, ok := firstSubmatch(wpsKeyRe, text); ok {
		res.Extracted[entity.KeyKey] = key
	}
	return res
}

// Capture parses handshake and pmkid runs. The capture succeeds when the
// capture step reports no error. A crack step can only add a key.
func Capture(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)

	step, ok := raw.Step(StepCapture)
	if !ok {
		return res
	}
	res.Extracted[entity.KeyFile] = step.Artifact
	res.Success = CaptureSucceeded(step)

	if crack, ok := raw.Step(StepCrack); ok {
		if key, found := firstSubmatch(crackKeyRe, crack.Stdout); found {
			res.Extracted[entity.KeyKey] = key
		}
	}
	return res
}

// CaptureSucceeded reports whether a capture step finished without a launch
// failure or an error marker on stderr. An elapsed window counts as done.
func CaptureSucceeded(step entity.StepOutput) bool {
	return step.Status != entity.CommandFailed && !captureErrRe.MatchString(step.Stderr)
}

// Wifite parses the aggregate wifite run into credential records
func Wifite(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)

	step, ok := raw.Step(StepAttack)
	if !ok {
		return res
	}
	res.Success = step.Clean() && !wifiteFailRe.MatchString(step.Stdout)

	seen := map[string]bool{}
	for _, line := range strings.Split(step.Stdout, "\n") {
		loc := macRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		bssid := entity.NormalizeMAC(line[loc[2]:loc[3]])
		pass, ok := besideMAC(wifitePassRe, line, loc)
		if !ok || seen[bssid] {
			continue
		}
		seen[bssid] = true
		essid, _ := besideMAC(wifiteEssidRe, line, loc)
		res.Credentials = append(res.Credentials, entity.Credential{BSSID: bssid, ESSID: essid, Password: pass})
	}
	return res
}

// besideMAC matches re against the text after the MAC at loc, then against
// the text before it. The MAC itself is never searched.
func besideMAC(re *regexp.Regexp, line string, loc []int) (string, bool) {
	if v, ok := firstSubmatch(re, line[loc[1]:]); ok {
		return v, true
	}
	return firstSubmatch(re, line[:loc[0]])
}

// Kismet parses a passive kismet window. Discovered MACs become network
// records for Wi-Fi sweeps and device records for Bluetooth sweeps.
func Kismet(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)

	step, ok := raw.Step(StepAttack)
	if !ok {
		return res
	}
	res.Success = step.Clean()

	var order []string
	names := map[string]string{}
	add := func(mac, name string) {
		mac = entity.NormalizeMAC(mac)
		if _, ok := names[mac]; !ok {
			order = append(order, mac)
		}
		if name != "" || names[mac] == "" {
			names[mac] = name
		}
	}

	for _, line := range strings.Split(step.Stdout, "\n") {
		if m := kismetSSIDRe.FindStringSubmatch(line); m != nil {
			add(m[1], m[2])
			continue
		}
		if !kismetNewRe.MatchString(line) {
			continue
		}
		mac, ok := firstSubmatch(macRe, line)
		if !ok {
			continue
		}
		name, _ := firstSubmatch(quotedRe, line)
		add(mac, name)
	}

	for _, mac := range order {
		if t.Domain() == entity.DomainBluetooth {
			res.Devices = append(res.Devices, entity.DeviceRecord{MAC: mac, Name: names[mac]})
		} else {
			res.Networks = append(res.Networks, entity.NetworkRecord{BSSID: mac, ESSID: names[mac]})
		}
	}
	return res
}
