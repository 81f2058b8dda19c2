package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/cliexec"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/logger"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/metrics"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/adapter/natsbus"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/assessor"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/classifier"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/planner"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/reporter"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/scanner"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/usecase"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

type runFlags struct {
	opts       config.Options
	configFile string
	btAdapter  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wifiddle",
		Short: "Wi-Fi and Bluetooth attack orchestration for authorized assessments",
		Long: `wifiddle repeatedly discovers nearby Wi-Fi networks and Bluetooth devices,
runs the selected attack modules against them and keeps every result in
per-domain JSON and CSV snapshots.

Only use it against equipment you are explicitly authorized to test.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newAttacksCmd())
	return root
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run discovery and attack cycles until interrupted",
		Example: `  wifiddle run --wifi --wordlist /usr/share/wordlists/rockyou.txt
  wifiddle run --bluetooth --attacks dos,justworks
  wifiddle run --wifi --bluetooth --cycles 3 --out ./results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCampaign(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.opts.Wifi, "wifi", false, "Enable the Wi-Fi domain")
	fl.BoolVar(&f.opts.Bluetooth, "bluetooth", false, "Enable the Bluetooth domain")
	fl.StringSliceVar(&f.opts.Attacks, "attacks", nil, "Attacks to run (default: all of the enabled domains)")
	fl.StringVar(&f.opts.Wordlist, "wordlist", "", "Wordlist for cracking captured handshakes and PMKIDs")
	fl.StringVar(&f.opts.OutDir, "out", "results", "Output directory")
	fl.StringVarP(&f.opts.Interface, "interface", "i", "", "Wireless interface (default: first one reported by iw dev)")
	fl.StringVar(&f.btAdapter, "bt-adapter", "", "Bluetooth adapter (default: hci0)")
	fl.StringVar(&f.configFile, "config", "", "Settings YAML file")
	fl.BoolVarP(&f.opts.Verbose, "verbose", "v", false, "Enable debug logging")
	fl.StringVar(&f.opts.NATSURL, "nats-url", "", "Publish every result to this NATS server")
	fl.IntVar(&f.opts.Cycles, "cycles", 0, "Stop after this many cycles (0 runs until interrupted)")
	return cmd
}

func newAttacksCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "attacks",
		Short: "List the attack modules of each domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.NewLoader(".").LoadSettings(configFile)
			if err != nil {
				return err
			}
			printAttacks(cmd.OutOrStdout(), classifier.NewRegistry(), settings.Timeouts)
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "Settings YAML file")
	return cmd
}

func runCampaign(parent context.Context, f *runFlags) error {
	settings, err := config.NewLoader(".").LoadSettings(f.configFile)
	if err != nil {
		return err
	}
	if f.btAdapter != "" {
		settings.BluetoothAdapter = f.btAdapter
	}

	rc, err := config.NewRunContext(f.opts, settings, time.Now())
	if err != nil {
		return err
	}
	if err := rc.Prepare(); err != nil {
		return err
	}

	lg, closer := logger.NewStructured(logger.Level(rc.Verbose), rc.LogFile)
	defer closer.Close()
	rc.Log = logrus.NewEntry(lg).WithField("run_id", rc.RunID)

	printBanner(os.Stdout, rc)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := cliexec.New(rc.Log)
	m := metrics.New()

	var bus reporter.Publisher
	if rc.NATSURL != "" {
		b, err := natsbus.Connect(rc.NATSURL, rc.Log)
		if err != nil {
			rc.Log.WithError(err).Warn("Result bus unavailable, continuing without it")
		} else {
			defer b.Close()
			bus = b
		}
	}
	store := reporter.NewStore(rc, m, bus, rc.Log)

	var bt *scanner.BluetoothScanner
	var enumerator assessor.Enumerator
	if rc.Bluetooth {
		bt = scanner.NewBluetoothScanner(runner, rc.Log, settings)
		enumerator = bt
	}
	scanners := func(iface string) scanner.Scanner {
		var wifi scanner.WifiDiscoverer
		if rc.Wifi {
			wifi = scanner.NewWifiScanner(runner, rc.Log, iface, rc.CaptureDir, settings)
		}
		var bluetooth scanner.BluetoothDiscoverer
		if bt != nil {
			bluetooth = bt
		}
		return scanner.NewCoordinatingScanner(rc.Log, wifi, bluetooth)
	}

	orch := usecase.NewCycleOrchestrator(
		rc,
		scanners,
		planner.NewSequentialPlanner(classifier.NewRegistry()),
		assessor.NewStepExecutor(runner, enumerator, rc.Log),
		store,
		usecase.NewInterfaceProvisioner(runner, settings, rc.Interface, rc.Log),
		m,
		usecase.OrchestratorConfigFromRun(rc),
		rc.Log,
	)

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	var sums []reporter.Summary
	for _, d := range rc.EnabledDomains() {
		sums = append(sums, store.Summary(d))
	}
	printSummary(os.Stdout, result, sums)
	rc.Log.WithFields(logrus.Fields{
		"status":   result.Status,
		"cycles":   result.Cycles,
		"duration": result.Duration.Round(time.Second).String(),
	}).Info("Run finished")
	return nil
}

// domainLabel is the heading used for a domain in console output
func domainLabel(d entity.Domain) string {
	if d == entity.DomainBluetooth {
		return "Bluetooth"
	}
	return "Wi-Fi"
}
