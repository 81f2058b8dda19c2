package scanner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

var (
	// BSSID Ch dBm WPS Lck Vendor ESSID
	washRe = regexp.MustCompile(`^\s*([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5})\s+(\d+)\s+(-?\d+)\s+(\d+\.\d+)\s+(?i:(Yes|No))\s+(\S+)(?:\s+(.*?))?\s*$`)
	// BSSID Channel RSSI WPS-Version WPS-State ESSID Locked
	washLegacyRe = regexp.MustCompile(`^\s*([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5})\s+(\d+)\s+(-?\d+)\s+([0-9.]+)\s+(\d+)\s+(.+?)\s+(?i:(Yes|No))\s*$`)

	btctlDeviceRe = regexp.MustCompile(`^\s*Device\s+([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5})\s*(.*?)\s*$`)
	leScanRe      = regexp.MustCompile(`^\s*([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5})\s+(.*?)\s*$`)
)

// UnknownName labels devices that did not advertise a name
const UnknownName = "Unknown"

// ParseWash extracts unlocked WPS networks from wash output. Both the
// current column layout and the legacy one are accepted.
func ParseWash(out string) []entity.WifiNetwork {
	var nets []entity.WifiNetwork
	seen := map[string]bool{}

	for _, line := range strings.Split(out, "\n") {
		var bssid, ch, power, locked, essid string
		if m := washRe.FindStringSubmatch(line); m != nil {
			bssid, ch, power, locked, essid = m[1], m[2], m[3], m[5], m[7]
		} else if m := washLegacyRe.FindStringSubmatch(line); m != nil {
			bssid, ch, power, locked, essid = m[1], m[2], m[3], m[7], m[6]
		} else {
			continue
		}
		if !strings.EqualFold(locked, "No") {
			continue
		}
		bssid = entity.NormalizeMAC(bssid)
		if seen[bssid] {
			continue
		}
		seen[bssid] = true

		channel, _ := strconv.Atoi(ch)
		dbm, _ := strconv.Atoi(power)
		nets = append(nets, entity.WifiNetwork{
			BSSID:      bssid,
			ESSID:      strings.TrimSpace(essid),
			Channel:    channel,
			Power:      dbm,
			Capability: entity.CapabilityWPS,
		})
	}
	return nets
}

// ParseAirodumpCSV reads an airodump-ng CSV dump and returns WPA access
// points that have at least one associated station.
func ParseAirodumpCSV(r io.Reader) ([]entity.WifiNetwork, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	const (
		sectionNone = iota
		sectionAP
		sectionStation
	)

	var aps []entity.WifiNetwork
	clients := map[string]int{}
	section := sectionNone

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read airodump csv: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		first := strings.TrimSpace(rec[0])
		switch {
		case first == "":
			continue
		case strings.EqualFold(first, "BSSID"):
			section = sectionAP
			continue
		case strings.EqualFold(first, "Station MAC"):
			section = sectionStation
			continue
		}

		switch section {
		case sectionAP:
			if len(rec) < 14 {
				continue
			}
			if !strings.Contains(strings.ToUpper(rec[5]), "WPA") {
				continue
			}
			channel, _ := strconv.Atoi(strings.TrimSpace(rec[3]))
			power, _ := strconv.Atoi(strings.TrimSpace(rec[8]))
			aps = append(aps, entity.WifiNetwork{
				BSSID:      entity.NormalizeMAC(first),
				ESSID:      strings.TrimSpace(rec[13]),
				Channel:    channel,
				Power:      power,
				Capability: entity.CapabilityWPA,
			})
		case sectionStation:
			if len(rec) < 6 {
				continue
			}
			bssid := entity.NormalizeMAC(rec[5])
			if strings.HasPrefix(bssid, "(NOT ASSOCIATED") {
				continue
			}
			clients[bssid]++
		}
	}

	var out []entity.WifiNetwork
	for _, ap := range aps {
		ap.Clients = clients[ap.BSSID]
		if ap.Clients > 0 {
			out = append(out, ap)
		}
	}
	return out, nil
}

// ParseBluetoothctlDevices parses `bluetoothctl devices` into Classic devices
func ParseBluetoothctlDevices(out string) []entity.BluetoothDevice {
	var devs []entity.BluetoothDevice
	for _, line := range strings.Split(out, "\n") {
		m := btctlDeviceRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		devs = append(devs, entity.BluetoothDevice{
			MAC:       entity.NormalizeMAC(m[1]),
			Name:      deviceName(m[2]),
			Transport: entity.TransportClassic,
		})
	}
	return dedupDevices(devs)
}

// ParseLEScan parses `hcitool lescan` output into LE devices. A later named
// advertisement replaces an earlier unnamed one.
func ParseLEScan(out string) []entity.BluetoothDevice {
	var devs []entity.BluetoothDevice
	index := map[string]int{}
	for _, line := range strings.Split(out, "\n") {
		m := leScanRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mac := entity.NormalizeMAC(m[1])
		name := deviceName(m[2])
		if i, ok := index[mac]; ok {
			if devs[i].Name == UnknownName && name != UnknownName {
				devs[i].Name = name
			}
			continue
		}
		index[mac] = len(devs)
		devs = append(devs, entity.BluetoothDevice{MAC: mac, Name: name, Transport: entity.TransportLE})
	}
	return devs
}

// MergeDevices concatenates device lists in order, keeping the first
// occurrence of each MAC.
func MergeDevices(lists ...[]entity.BluetoothDevice) []entity.BluetoothDevice {
	var all []entity.BluetoothDevice
	for _, l := range lists {
		all = append(all, l...)
	}
	return dedupDevices(all)
}

func dedupDevices(devs []entity.BluetoothDevice) []entity.BluetoothDevice {
	seen := map[string]bool{}
	out := devs[:0:0]
	for _, d := range devs {
		key := entity.NormalizeMAC(d.MAC)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

func deviceName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "(unknown)") {
		return UnknownName
	}
	return s
}
