package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

const washOutput = `
BSSID               Ch  dBm  WPS  Lck  Vendor    ESSID
--------------------------------------------------------------------------------
AA:BB:CC:DD:EE:FF    6  -45  2.0  No   RalinkTe  HomeNet
11:22:33:44:55:66   11  -70  2.0  Yes  Broadcom  Locked Net
22:33:44:55:66:77    1  -60  1.0  No   AtherosC
`

func TestParseWashScenario(t *testing.T) {
	nets := ParseWash("AA:BB:CC:DD:EE:FF    6  -45  2.0  No   RalinkTe  HomeNet\n")

	require.Len(t, nets, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", nets[0].BSSID)
	assert.Equal(t, 6, nets[0].Channel)
	assert.Equal(t, entity.CapabilityWPS, nets[0].Capability)
}

func TestParseWashLockState(t *testing.T) {
	nets := ParseWash(washOutput)

	require.Len(t, nets, 2)
	assert.Equal(t, entity.WifiNetwork{BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "HomeNet", Channel: 6, Power: -45, Capability: entity.CapabilityWPS}, nets[0])
	assert.Equal(t, "22:33:44:55:66:77", nets[1].BSSID)
	assert.Empty(t, nets[1].ESSID)

	for _, lock := range []string{"No", "Yes"} {
		line := fmt.Sprintf("AA:BB:CC:DD:EE:FF  3  -50  2.0  %s  Vendor  Net", lock)
		got := ParseWash(line)
		if lock == "No" {
			assert.Len(t, got, 1, "unlocked line must yield one network")
		} else {
			assert.Empty(t, got, "locked line must yield none")
		}
	}
}

func TestParseWashLegacyLayout(t *testing.T) {
	out := "BSSID                  Channel       RSSI       WPS Version       WPS Locked        ESSID\n" +
		"aa:bb:cc:dd:ee:01       1            -57        1.0               1                 Old Router     No\n" +
		"aa:bb:cc:dd:ee:02       9            -80        1.0               1                 Locked         Yes\n"

	nets := ParseWash(out)

	require.Len(t, nets, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", nets[0].BSSID)
	assert.Equal(t, "Old Router", nets[0].ESSID)
	assert.Equal(t, 1, nets[0].Channel)
}

func airodumpCSV(clients map[string]int) string {
	var b strings.Builder
	b.WriteString("\r\nBSSID, First time seen, Last time seen, channel, Speed, Privacy, Cipher, Authentication, Power, # beacons, # IV, LAN IP, ID-length, ESSID, Key\r\n")
	b.WriteString("AA:BB:CC:DD:EE:01, 2026-01-01 10:00:00, 2026-01-01 10:00:30,  6,  54, WPA2, CCMP, PSK, -40,       12,        0,   0.  0.  0.  0,   4, Home, \r\n")
	b.WriteString("AA:BB:CC:DD:EE:02, 2026-01-01 10:00:00, 2026-01-01 10:00:30, 11, 130, WPA2 WPA, CCMP TKIP, PSK, -65,        8,        0,   0.  0.  0.  0,   6, Office, \r\n")
	b.WriteString("AA:BB:CC:DD:EE:03, 2026-01-01 10:00:00, 2026-01-01 10:00:30,  1,  54, OPN, , , -70,        3,        0,   0.  0.  0.  0,   4, Free, \r\n")
	b.WriteString("\r\nStation MAC, First time seen, Last time seen, Power, # packets, BSSID, Probed ESSIDs\r\n")
	n := 0
	for bssid, count := range clients {
		for i := 0; i < count; i++ {
			n++
			fmt.Fprintf(&b, "10:00:00:00:00:%02X, 2026-01-01 10:00:00, 2026-01-01 10:00:30, -50, 20, %s, \r\n", n, bssid)
		}
	}
	b.WriteString("10:00:00:00:00:FF, 2026-01-01 10:00:00, 2026-01-01 10:00:30, -50, 20, (not associated) , Probe\r\n")
	return b.String()
}

func TestParseAirodumpCSVClientFilter(t *testing.T) {
	nets, err := ParseAirodumpCSV(strings.NewReader(airodumpCSV(map[string]int{
		"AA:BB:CC:DD:EE:02": 2,
		"AA:BB:CC:DD:EE:03": 1,
	})))
	require.NoError(t, err)

	require.Len(t, nets, 1)
	assert.Equal(t, entity.WifiNetwork{
		BSSID:      "AA:BB:CC:DD:EE:02",
		ESSID:      "Office",
		Channel:    11,
		Power:      -65,
		Capability: entity.CapabilityWPA,
		Clients:    2,
	}, nets[0])
}

func TestParseAirodumpCSVZeroClients(t *testing.T) {
	for count := 0; count <= 3; count++ {
		nets, err := ParseAirodumpCSV(strings.NewReader(airodumpCSV(map[string]int{"AA:BB:CC:DD:EE:01": count})))
		require.NoError(t, err)
		if count == 0 {
			assert.Empty(t, nets)
		} else {
			require.Len(t, nets, 1)
			assert.Equal(t, count, nets[0].Clients)
		}
	}
}

func TestParseBluetoothDevices(t *testing.T) {
	classic := ParseBluetoothctlDevices("Device 00:1A:7D:DA:71:13 Speaker\nDevice 00:1a:7d:da:71:13 Speaker\n[CHG] Controller 00:00:00:00:00:00 Discovering: yes\nDevice 00:1A:7D:DA:71:14\n")
	assert.Equal(t, []entity.BluetoothDevice{
		{MAC: "00:1A:7D:DA:71:13", Name: "Speaker", Transport: entity.TransportClassic},
		{MAC: "00:1A:7D:DA:71:14", Name: UnknownName, Transport: entity.TransportClassic},
	}, classic)

	le := ParseLEScan("LE Scan ...\nC8:0F:10:AA:BB:CC (unknown)\nC8:0F:10:AA:BB:CC Band\n00:1A:7D:DA:71:13 Speaker LE\n")
	assert.Equal(t, []entity.BluetoothDevice{
		{MAC: "C8:0F:10:AA:BB:CC", Name: "Band", Transport: entity.TransportLE},
		{MAC: "00:1A:7D:DA:71:13", Name: "Speaker LE", Transport: entity.TransportLE},
	}, le)

	merged := MergeDevices(classic, le)
	require.Len(t, merged, 3)
	assert.Equal(t, entity.TransportClassic, merged[0].Transport, "classic entry wins on duplicate MAC")
	assert.Equal(t, "C8:0F:10:AA:BB:CC", merged[2].MAC)
}

func TestWifiScannerDiscover(t *testing.T) {
	dir := t.TempDir()
	exec := cliexec.NewFakeExecutor().
		On("wash -i wlan0mon", entity.CommandOutput{Status: entity.CommandOk, Stdout: washOutput}).
		OnFunc("airodump-ng --encrypt WPA", func(spec entity.CommandSpec) entity.CommandOutput {
			prefix := spec.Args[3]
			data := airodumpCSV(map[string]int{"AA:BB:CC:DD:EE:01": 1})
			if err := os.WriteFile(AirodumpCSVPath(prefix), []byte(data), 0o644); err != nil {
				return entity.CommandOutput{Status: entity.CommandFailed, Stderr: err.Error()}
			}
			return entity.CommandOutput{Status: entity.CommandOk}
		})

	s := NewWifiScanner(exec, discardLog(), "wlan0mon", dir, config.DefaultSettings())
	res := s.Discover(context.Background())

	require.Len(t, res.WPS, 2)
	require.Len(t, res.WPA, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", res.WPA[0].BSSID)

	calls := exec.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Window)
	assert.Equal(t, config.DefaultSettings().Discovery.WPSWindow, calls[0].Timeout)
	assert.True(t, calls[1].Window)
}

func TestWifiScannerSubScanFailureIsIsolated(t *testing.T) {
	exec := cliexec.NewFakeExecutor().
		On("wash", entity.CommandOutput{Status: entity.CommandFailed, Stderr: "exec: \"wash\": executable file not found"}).
		On("airodump-ng", entity.CommandOutput{Status: entity.CommandOk})

	s := NewWifiScanner(exec, discardLog(), "wlan0mon", t.TempDir(), config.DefaultSettings())
	res := s.Discover(context.Background())

	assert.Empty(t, res.WPS)
	assert.Empty(t, res.WPA, "missing dump file yields an empty WPA set")
	assert.Len(t, exec.Calls(), 2, "WPA scan still runs after the WPS scan failed")
}

func TestBluetoothScannerDiscover(t *testing.T) {
	exec := cliexec.NewFakeExecutor().
		On("bluetoothctl devices", entity.CommandOutput{Status: entity.CommandOk, Stdout: "Device 00:1A:7D:DA:71:13 Speaker\n"}).
		On("hcitool -i hci0 lescan", entity.CommandOutput{Status: entity.CommandOk, Stdout: "LE Scan ...\n00:1A:7D:DA:71:13 (unknown)\nC8:0F:10:AA:BB:CC Band\n"})

	s := NewBluetoothScanner(exec, discardLog(), config.DefaultSettings())
	devs := s.Discover(context.Background())

	assert.Equal(t, []entity.BluetoothDevice{
		{MAC: "00:1A:7D:DA:71:13", Name: "Speaker", Transport: entity.TransportClassic},
		{MAC: "C8:0F:10:AA:BB:CC", Name: "Band", Transport: entity.TransportLE},
	}, devs)
	assert.Contains(t, exec.CallLines(), "bluetoothctl scan off")
	assert.Contains(t, exec.CallLines(), "bluetoothctl --timeout 5 scan on")
}

func TestBluetoothScannerClassicFailureKeepsLE(t *testing.T) {
	exec := cliexec.NewFakeExecutor().
		On("bluetoothctl devices", entity.CommandOutput{Status: entity.CommandOk, Stderr: "No default controller available"}).
		On("hcitool", entity.CommandOutput{Status: entity.CommandOk, Stdout: "C8:0F:10:AA:BB:CC Band\n"})

	s := NewBluetoothScanner(exec, discardLog(), config.DefaultSettings())
	devs := s.Discover(context.Background())

	require.Len(t, devs, 1)
	assert.Equal(t, entity.TransportLE, devs[0].Transport)
}

func TestEnumerate(t *testing.T) {
	exec := cliexec.NewFakeExecutor().
		On("bluetoothctl info", entity.CommandOutput{Status: entity.CommandOk, Stdout: "Name: Speaker\nUUID: Audio Sink\n"}).
		On("gatttool", entity.CommandOutput{Status: entity.CommandOk, Stderr: "connect error: Connection refused (111)"})

	s := NewBluetoothScanner(exec, discardLog(), config.DefaultSettings())

	out, err := s.Enumerate(context.Background(), entity.BluetoothDevice{MAC: "00:1A:7D:DA:71:13", Transport: entity.TransportClassic})
	require.NoError(t, err)
	assert.Contains(t, out, "Audio Sink")

	_, err = s.Enumerate(context.Background(), entity.BluetoothDevice{MAC: "C8:0F:10:AA:BB:CC", Transport: entity.TransportLE})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection refused")
}

func TestCoordinatingScannerRespectsDomains(t *testing.T) {
	exec := cliexec.NewFakeExecutor().
		On("wash", entity.CommandOutput{Status: entity.CommandOk, Stdout: washOutput})
	settings := config.DefaultSettings()
	s := NewCoordinatingScanner(discardLog(),
		NewWifiScanner(exec, discardLog(), "wlan0mon", t.TempDir(), settings),
		NewBluetoothScanner(exec, discardLog(), settings))

	d := s.Discover(context.Background(), []entity.Domain{entity.DomainWifi})

	assert.Equal(t, 2, d.Count(entity.DomainWifi))
	assert.Zero(t, d.Count(entity.DomainBluetooth))
	assert.False(t, d.Empty())
	for _, line := range exec.CallLines() {
		assert.NotContains(t, line, "bluetoothctl")
	}
}
