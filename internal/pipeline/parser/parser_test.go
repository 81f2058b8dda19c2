package parser

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	finished = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	wpsNet   = entity.WifiNetwork{BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "HomeNet", Channel: 6, Capability: entity.CapabilityWPS}
	wpaNet   = entity.WifiNetwork{BSSID: "11:22:33:44:55:66", ESSID: "Office", Channel: 11, Capability: entity.CapabilityWPA, Clients: 2}
	classic  = entity.BluetoothDevice{MAC: "00:1A:7D:DA:71:13", Name: "Speaker", Transport: entity.TransportClassic}
	le       = entity.BluetoothDevice{MAC: "C8:0F:10:AA:BB:CC", Name: "Band", Transport: entity.TransportLE}
)

func raw(attack entity.Attack, steps ...entity.StepOutput) entity.RawOutput {
	return entity.RawOutput{InvocationID: "inv", Attack: attack, Steps: steps, Finished: finished}
}

func ok(name, stdout string) entity.StepOutput {
	return entity.StepOutput{Name: name, Command: name, Stdout: stdout, Status: entity.CommandOk}
}

func TestWPSExtractsPinAndKey(t *testing.T) {
	out := "[+] Switching wlan0mon to channel 6\n[+] WPS PIN: '12345670'\n[+] Password: 'hunter2'\n"

	res := WPS(raw(entity.AttackPixieDust, ok(StepChannel, ""), ok(StepAttack, out)), wpsNet)

	assert.True(t, res.Success)
	assert.Equal(t, map[string]string{entity.KeyPIN: "12345670", entity.KeyKey: "hunter2"}, res.Extracted)
	assert.Equal(t, entity.AttackPixieDust, res.Attack)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", res.TargetID)
	assert.Equal(t, finished, res.Timestamp)
}

func TestWPSFormats(t *testing.T) {
	tests := []struct {
		name string
		out  string
		pin  string
		key  string
	}{
		{name: "reaver psk", out: "[+] WPS PIN: '01234567'\n[+] WPA PSK: 'correct horse'\n[+] AP SSID: 'HomeNet'", pin: "01234567", key: "correct horse"},
		{name: "bully", out: "[*] Pin is '55554444', key is 'n0pe'\n\tPIN : '55554444'\n\tKEY : 'n0pe'", pin: "55554444", key: "n0pe"},
		{name: "pin only", out: "[Pixie-Dust] PIN: 87654321", pin: "87654321"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := WPS(raw(entity.AttackBruteforce, ok(StepAttack, tt.out)), wpsNet)
			require.True(t, res.Success)
			assert.Equal(t, tt.pin, res.Extracted[entity.KeyPIN])
			assert.Equal(t, tt.key, res.Extracted[entity.KeyKey])
		})
	}
}

func TestWPSWithoutMarkerFails(t *testing.T) {
	out := "[+] Trying pin \"12345670\"\n[!] WARNING: Receive timeout occurred\n"

	res := WPS(raw(entity.AttackPixieDust, ok(StepAttack, out)), wpsNet)

	assert.False(t, res.Success)
	assert.Empty(t, res.Extracted)
	assert.Contains(t, res.RawOutput, "Receive timeout occurred")
}

func TestCaptureRecordsFileAndCrackedKey(t *testing.T) {
	capture := ok(StepCapture, "")
	capture.Artifact = "/tmp/run/captures/handshake_112233445566-01.cap"
	crack := ok(StepCrack, "                KEY FOUND! [ s3cr3tpass ]\n")

	res := Capture(raw(entity.AttackHandshake, ok(StepChannel, ""), capture, crack), wpaNet)

	assert.True(t, res.Success)
	assert.Equal(t, capture.Artifact, res.Extracted[entity.KeyFile])
	assert.Equal(t, "s3cr3tpass", res.Extracted[entity.KeyKey])
}

func TestCaptureCrackFailureKeepsSuccess(t *testing.T) {
	capture := ok(StepCapture, "")
	capture.Artifact = "pmkid.pcapng"
	crack := entity.StepOutput{Name: StepCrack, Stdout: "Passphrase not in dictionary", Status: entity.CommandTimedOut}

	res := Capture(raw(entity.AttackPMKID, capture, crack), wpaNet)

	assert.True(t, res.Success)
	assert.Equal(t, "pmkid.pcapng", res.Extracted[entity.KeyFile])
	assert.NotContains(t, res.Extracted, entity.KeyKey)
}

func TestCaptureToolError(t *testing.T) {
	capture := entity.StepOutput{Name: StepCapture, Stderr: "ioctl(SIOCSIWMODE) failed: No such device", Status: entity.CommandOk, Artifact: "x.cap"}

	res := Capture(raw(entity.AttackHandshake, capture), wpaNet)

	assert.False(t, res.Success)
	assert.Equal(t, "x.cap", res.Extracted[entity.KeyFile])
}

func TestWifiteCredentials(t *testing.T) {
	out := `[+] scanning for wireless devices...
[+] AA:BB:CC:DD:EE:01 ESSID: "Home Net" cracked, password: hunter2
[+] aa:bb:cc:dd:ee:02 essid: Cafe PSK (password): latte123
[+] AA:BB:CC:DD:EE:01 password: duplicate
[+] AA:BB:CC:DD:EE:03 handshake captured
[+] bssid AA:BB:CC:DD:EE:04 essid Home password hunter3
[+] password swordfish bssid AA:BB:CC:DD:EE:05
[+] Finished attacking 5 targets`

	res := Wifite(raw(entity.AttackWifite, ok(StepAttack, out)), entity.Sweep{Scope: entity.DomainWifi, Interface: "wlan0mon"})

	assert.True(t, res.Success)
	assert.Equal(t, []entity.Credential{
		{BSSID: "AA:BB:CC:DD:EE:01", ESSID: "Home Net", Password: "hunter2"},
		{BSSID: "AA:BB:CC:DD:EE:02", ESSID: "Cafe", Password: "latte123"},
		{BSSID: "AA:BB:CC:DD:EE:04", ESSID: "Home", Password: "hunter3"},
		{BSSID: "AA:BB:CC:DD:EE:05", Password: "swordfish"},
	}, res.Credentials)
}

func TestWifiteFailureMarker(t *testing.T) {
	res := Wifite(raw(entity.AttackWifite, ok(StepAttack, " [!] Error: no targets found\n")), entity.Sweep{Scope: entity.DomainWifi})
	assert.False(t, res.Success)

	stderr := entity.StepOutput{Name: StepAttack, Stderr: "permission denied", Status: entity.CommandOk}
	res = Wifite(raw(entity.AttackWifite, stderr), entity.Sweep{Scope: entity.DomainWifi})
	assert.False(t, res.Success)

	timedOut := entity.StepOutput{Name: StepAttack, Status: entity.CommandTimedOut}
	res = Wifite(raw(entity.AttackWifite, timedOut), entity.Sweep{Scope: entity.DomainWifi})
	assert.False(t, res.Success)
}

func TestKismetWifiNetworks(t *testing.T) {
	out := `INFO: Detected new 802.11 Wi-Fi access point AA:BB:CC:DD:EE:01
INFO: 802.11 Wi-Fi device aa:bb:cc:dd:ee:01 advertising SSID 'HomeNet'
INFO: Detected new 802.11 Wi-Fi access point AA:BB:CC:DD:EE:02
INFO: Detected new 802.11 Wi-Fi access point AA:BB:CC:DD:EE:01
INFO: Opened pcapng log file`

	res := Kismet(raw(entity.AttackKismet, ok(StepAttack, out)), entity.Sweep{Scope: entity.DomainWifi, Interface: "wlan0mon"})

	assert.True(t, res.Success)
	assert.Equal(t, []entity.NetworkRecord{
		{BSSID: "AA:BB:CC:DD:EE:01", ESSID: "HomeNet"},
		{BSSID: "AA:BB:CC:DD:EE:02"},
	}, res.Networks)
	assert.Empty(t, res.Devices)
}

func TestKismetBluetoothDevices(t *testing.T) {
	out := `INFO: Detected new Bluetooth device 00:1A:7D:DA:71:13 'Speaker'
INFO: Detected new BTLE device C8:0F:10:AA:BB:CC`

	res := Kismet(raw(entity.AttackKismet, ok(StepAttack, out)), entity.Sweep{Scope: entity.DomainBluetooth, Interface: "hci0"})

	assert.True(t, res.Success)
	assert.Equal(t, []entity.DeviceRecord{
		{MAC: "00:1A:7D:DA:71:13", Name: "Speaker"},
		{MAC: "C8:0F:10:AA:BB:CC"},
	}, res.Devices)
}

func TestInvalidUTF8IsReplacedOnce(t *testing.T) {
	out := "INFO: 802.11 Wi-Fi device AA:BB:CC:DD:EE:01 advertising SSID '\xff\xfeCafe'\n"
	net := entity.WifiNetwork{BSSID: "AA:BB:CC:DD:EE:01", ESSID: "\xffCafe", Capability: entity.CapabilityWPA}

	res := Kismet(raw(entity.AttackKismet, ok(StepAttack, out)), net)

	require.Len(t, res.Networks, 1)
	assert.Equal(t, "\uFFFDCafe", res.Networks[0].ESSID)
	assert.Equal(t, "\uFFFDCafe", res.TargetName)
	assert.True(t, utf8.ValidString(res.RawOutput))
	assert.Contains(t, res.RawOutput, "'\uFFFDCafe'")
}

func TestKismetStderrFails(t *testing.T) {
	step := entity.StepOutput{Name: StepAttack, Stderr: "FATAL: could not open source", Status: entity.CommandOk}
	res := Kismet(raw(entity.AttackKismet, step), entity.Sweep{Scope: entity.DomainWifi})
	assert.False(t, res.Success)
}

func TestDoSOrMerge(t *testing.T) {
	l2ping := entity.StepOutput{Name: StepL2Ping, Stderr: "Can't connect: Host is down", Status: entity.CommandOk}
	bettercap := ok(StepBettercap, "ble.recon on\n")

	res := DoS(raw(entity.AttackDoS, l2ping, bettercap), classic)

	assert.True(t, res.Success)
	assert.Equal(t, "failed", res.Extracted[entity.KeyL2Ping])
	assert.Equal(t, "ok", res.Extracted[entity.KeyBettercap])
}

func TestDoSBothProbesFail(t *testing.T) {
	l2ping := entity.StepOutput{Name: StepL2Ping, Status: entity.CommandTimedOut}
	bettercap := entity.StepOutput{Name: StepBettercap, Stderr: "ble.recon: device not found", Status: entity.CommandOk}

	res := DoS(raw(entity.AttackDoS, l2ping, bettercap), classic)
	assert.False(t, res.Success)
}

func TestDoSLEOnlyProbe(t *testing.T) {
	res := DoS(raw(entity.AttackDoS, ok(StepBettercap, "")), le)

	assert.True(t, res.Success)
	assert.Equal(t, "skipped", res.Extracted[entity.KeyL2Ping])
}

func TestJustWorks(t *testing.T) {
	pair := ok(StepPair, "Attempting to pair with 00:1A:7D:DA:71:13\nPairing successful\n")
	connect := entity.StepOutput{Name: StepConnect, Stdout: "Failed to connect: org.bluez.Error.Failed", Status: entity.CommandOk}

	res := JustWorks(raw(entity.AttackJustWorks, ok(StepPiscan, ""), ok(StepAuth, ""), pair, connect), classic)

	assert.True(t, res.Success)
	assert.Equal(t, KeyUnavailable, res.Extracted[entity.KeyKey])
	assert.Equal(t, "false", res.Extracted[entity.KeyConnected])
	assert.Contains(t, res.RawOutput, "Failed to connect")
}

func TestJustWorksPairingFailed(t *testing.T) {
	pair := ok(StepPair, "Failed to pair: org.bluez.Error.AuthenticationFailed\n")

	res := JustWorks(raw(entity.AttackJustWorks, pair), classic)

	assert.False(t, res.Success)
	assert.Empty(t, res.Extracted)
}

func TestBlueDucky(t *testing.T) {
	res := BlueDucky(raw(entity.AttackBlueDucky, ok(StepAttack, "Payload sent")), classic)
	assert.True(t, res.Success)
	assert.Equal(t, PayloadAttempted, res.Extracted[entity.KeyPayload])

	failed := entity.StepOutput{Name: StepAttack, Stderr: "Traceback", Status: entity.CommandOk}
	res = BlueDucky(raw(entity.AttackBlueDucky, failed), classic)
	assert.False(t, res.Success)
	assert.Empty(t, res.Extracted)
}

func TestParsersAreIdempotent(t *testing.T) {
	capture := ok(StepCapture, "")
	capture.Artifact = "a.cap"

	cases := []struct {
		name   string
		fn     Func
		raw    entity.RawOutput
		target entity.Target
	}{
		{"wps", WPS, raw(entity.AttackPixieDust, ok(StepAttack, "WPS PIN: '12345670'\nPassword: 'hunter2'")), wpsNet},
		{"capture", Capture, raw(entity.AttackHandshake, capture, ok(StepCrack, "KEY FOUND! [ k ]")), wpaNet},
		{"wifite", Wifite, raw(entity.AttackWifite, ok(StepAttack, "AA:BB:CC:DD:EE:01 password: x")), entity.Sweep{Scope: entity.DomainWifi}},
		{"kismet", Kismet, raw(entity.AttackKismet, ok(StepAttack, "Detected new device AA:BB:CC:DD:EE:01")), entity.Sweep{Scope: entity.DomainBluetooth}},
		{"dos", DoS, raw(entity.AttackDoS, ok(StepL2Ping, "")), classic},
		{"justworks", JustWorks, raw(entity.AttackJustWorks, ok(StepPair, "Pairing successful"), ok(StepConnect, "Connection successful")), classic},
		{"blueducky", BlueDucky, raw(entity.AttackBlueDucky, ok(StepAttack, "")), classic},
		{"empty", WPS, raw(entity.AttackPixieDust), wpsNet},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := tc.fn(tc.raw, tc.target)
			second := tc.fn(tc.raw, tc.target)
			assert.Equal(t, first, second)
		})
	}
}
