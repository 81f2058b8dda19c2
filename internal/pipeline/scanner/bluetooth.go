package scanner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BluetoothScanner discovers Classic devices through bluetoothctl and LE
// devices through hcitool, concurrently.
type BluetoothScanner struct {
	Exec     cliexec.Executor
	Log      *logrus.Entry
	Adapter  string
	Settings config.Settings
}

// NewBluetoothScanner creates a Bluetooth discoverer for the given adapter
func NewBluetoothScanner(exec cliexec.Executor, log *logrus.Entry, settings config.Settings) *BluetoothScanner {
	return &BluetoothScanner{
		Exec:     exec,
		Log:      log.WithFields(logrus.Fields{"component": "scanner", "domain": entity.DomainBluetooth}),
		Adapter:  settings.BluetoothAdapter,
		Settings: settings,
	}
}

// Discover runs the Classic and LE scans concurrently and merges them,
// Classic first, de-duplicated by MAC.
func (s *BluetoothScanner) Discover(ctx context.Context) []entity.BluetoothDevice {
	var classic, le []entity.BluetoothDevice

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		devs, err := s.scanClassic(gctx)
		if err != nil {
			s.Log.WithError(err).Warn("Classic scan failed")
		}
		classic = devs
		return nil
	})
	g.Go(func() error {
		devs, err := s.scanLE(gctx)
		if err != nil {
			s.Log.WithError(err).Warn("LE scan failed")
		}
		le = devs
		return nil
	})
	_ = g.Wait()

	devices := MergeDevices(classic, le)
	for _, d := range devices {
		s.Log.WithField("device", d.String()).Info("Found Bluetooth device")
	}
	return devices
}

func (s *BluetoothScanner) scanClassic(ctx context.Context) ([]entity.BluetoothDevice, error) {
	cmdTimeout := s.Settings.Discovery.Command
	s.Exec.Run(ctx, s.hciconfig("up", cmdTimeout))
	s.Exec.Run(ctx, s.hciconfig("piscan", cmdTimeout))

	listen := s.Settings.Discovery.ClassicScan
	s.Exec.Run(ctx, entity.CommandSpec{
		Name:    "bluetoothctl",
		Path:    s.Settings.Tool("bluetoothctl"),
		Args:    []string{"--timeout", strconv.Itoa(max(1, int(listen/time.Second))), "scan", "on"},
		Timeout: listen + 5*time.Second,
	})

	out := s.Exec.Run(ctx, s.bluetoothctl(cmdTimeout, "devices"))
	s.Exec.Run(context.WithoutCancel(ctx), s.bluetoothctl(cmdTimeout, "scan", "off"))

	if out.Status != entity.CommandOk || strings.TrimSpace(out.Stderr) != "" {
		return nil, fmt.Errorf("bluetoothctl devices %s: %s", out.Status, out.Stderr)
	}
	return ParseBluetoothctlDevices(out.Stdout), nil
}

func (s *BluetoothScanner) scanLE(ctx context.Context) ([]entity.BluetoothDevice, error) {
	out := s.Exec.Run(ctx, entity.CommandSpec{
		Name:    "hcitool",
		Path:    s.Settings.Tool("hcitool"),
		Args:    []string{"-i", s.Adapter, "lescan"},
		Timeout: s.Settings.Discovery.LEScan,
		Window:  true,
	})
	if out.Status != entity.CommandOk {
		return nil, fmt.Errorf("hcitool lescan %s: %s", out.Status, out.Stderr)
	}
	return ParseLEScan(out.Stdout), nil
}

// Enumerate lists the services of a device. Classic devices are queried
// through bluetoothctl info, LE devices through gatttool.
func (s *BluetoothScanner) Enumerate(ctx context.Context, dev entity.BluetoothDevice) (string, error) {
	var specs []entity.CommandSpec
	switch dev.Transport {
	case entity.TransportClassic:
		specs = append(specs, s.bluetoothctl(s.Settings.Discovery.ClassicEnum, "info", dev.MAC))
	case entity.TransportLE:
		for _, op := range []string{"--primary", "--characteristics"} {
			specs = append(specs, entity.CommandSpec{
				Name:    "gatttool",
				Path:    s.Settings.Tool("gatttool"),
				Args:    []string{"-i", s.Adapter, "-b", dev.MAC, op},
				Timeout: s.Settings.Discovery.LEEnum,
			})
		}
	}

	var b strings.Builder
	for _, spec := range specs {
		out := s.Exec.Run(ctx, spec)
		if !out.Clean() {
			return b.String(), fmt.Errorf("%s %s: %s", spec.Name, out.Status, strings.TrimSpace(out.Stderr))
		}
		b.WriteString(out.Stdout)
	}
	return b.String(), nil
}

func (s *BluetoothScanner) hciconfig(op string, timeout time.Duration) entity.CommandSpec {
	return entity.CommandSpec{
		Name:    "hciconfig",
		Path:    s.Settings.Tool("hciconfig"),
		Args:    []string{s.Adapter, op},
		Timeout: timeout,
	}
}

func (s *BluetoothScanner) bluetoothctl(timeout time.Duration, args ...string) entity.CommandSpec {
	return entity.CommandSpec{
		Name:    "bluetoothctl",
		Path:    s.Settings.Tool("bluetoothctl"),
		Args:    args,
		Timeout: timeout,
	}
}
