package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"

	"github.com/sirupsen/logrus"
)

// WifiScanner discovers WPS networks with wash and WPA networks with
// airodump-ng on a monitor mode interface.
type WifiScanner struct {
	Exec      cliexec.Executor
	Log       *logrus.Entry
	Interface string
	WorkDir   string
	Settings  config.Settings

	seq int
}

// NewWifiScanner creates a Wi-Fi discoverer writing scan dumps to workDir
func NewWifiScanner(exec cliexec.Executor, log *logrus.Entry, iface, workDir string, settings config.Settings) *WifiScanner {
	return &WifiScanner{
		Exec:      exec,
		Log:       log.WithFields(logrus.Fields{"component": "scanner", "domain": entity.DomainWifi}),
		Interface: iface,
		WorkDir:   workDir,
		Settings:  settings,
	}
}

// Discover runs both sub-scans. A failure in one leaves its set empty.
func (s *WifiScanner) Discover(ctx context.Context) WifiResult {
	var res WifiResult

	wps, err := s.scanWPS(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("WPS scan failed")
	}
	res.WPS = wps

	if ctx.Err() != nil {
		return res
	}

	wpa, err := s.scanWPA(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("WPA scan failed")
	}
	res.WPA = wpa

	for _, n := range res.WPS {
		s.Log.WithField("network", n.String()).Info("Found WPS network")
	}
	for _, n := range res.WPA {
		s.Log.WithFields(logrus.Fields{"network": n.String(), "clients": n.Clients}).Info("Found WPA network with clients")
	}
	return res
}

func (s *WifiScanner) scanWPS(ctx context.Context) ([]entity.WifiNetwork, error) {
	out := s.Exec.Run(ctx, entity.CommandSpec{
		Name:    "wash",
		Path:    s.Settings.Tool("wash"),
		Args:    []string{"-i", s.Interface},
		Timeout: s.Settings.Discovery.WPSWindow,
		Window:  true,
	})
	if out.Status != entity.CommandOk {
		return nil, fmt.Errorf("wash %s: %s", out.Status, out.Stderr)
	}
	return ParseWash(out.Stdout), nil
}

func (s *WifiScanner) scanWPA(ctx context.Context) ([]entity.WifiNetwork, error) {
	if err := os.MkdirAll(s.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scan directory: %w", err)
	}
	s.seq++
	prefix := filepath.Join(s.WorkDir, fmt.Sprintf("wpa_scan_%03d", s.seq))

	out := s.Exec.Run(ctx, entity.CommandSpec{
		Name:    "airodump-ng",
		Path:    s.Settings.Tool("airodump-ng"),
		Args:    []string{"--encrypt", "WPA", "-w", prefix, "--output-format", "csv", s.Interface},
		Timeout: s.Settings.Discovery.WPAWindow,
		Window:  true,
	})
	if out.Status != entity.CommandOk {
		return nil, fmt.Errorf("airodump-ng %s: %s", out.Status, out.Stderr)
	}

	f, err := os.Open(AirodumpCSVPath(prefix))
	if err != nil {
		return nil, fmt.Errorf("open airodump dump: %w", err)
	}
	defer f.Close()
	return ParseAirodumpCSV(f)
}

// AirodumpCSVPath is the file airodump-ng writes for a fresh -w prefix
func AirodumpCSVPath(prefix string) string {
	return prefix + "-01.csv"
}
