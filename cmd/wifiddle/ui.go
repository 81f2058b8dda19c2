package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/config"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/classifier"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/pipeline/reporter"
	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/usecase"

	"github.com/charmbracelet/lipgloss"
)

var (
	primary = lipgloss.Color("#7D56F4")
	success = lipgloss.Color("#00D26A")
	warning = lipgloss.Color("#FFB800")
	danger  = lipgloss.Color("#FF3838")
	muted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primary).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle   = lipgloss.NewStyle().Foreground(muted).Width(14)
	nameStyle    = lipgloss.NewStyle().Bold(true).Width(12)
	timeoutStyle = lipgloss.NewStyle().Foreground(muted).Width(8)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(danger).Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warning).
			Padding(0, 1)
)

func printBanner(w io.Writer, rc *config.RunContext) {
	fmt.Fprintln(w, titleStyle.Render("wifiddle "+version))
	fmt.Fprintln(w, boxStyle.Render(warningStyle.Render("Authorized testing only.")+"\n"+
		"Attacks disrupt and probe nearby radios. Run them only against\n"+
		"networks and devices you own or have written permission to test."))

	domains := make([]string, 0, 2)
	for _, d := range rc.EnabledDomains() {
		domains = append(domains, domainLabel(d))
	}
	attacks := "all"
	if len(rc.Selected) > 0 {
		names := make([]string, len(rc.Selected))
		for i, a := range rc.Selected {
			names[i] = string(a)
		}
		attacks = strings.Join(names, ", ")
	}
	iface := rc.Interface
	if iface == "" {
		iface = "auto"
	}

	row(w, "Run", rc.RunID)
	row(w, "Domains", strings.Join(domains, ", "))
	row(w, "Attacks", attacks)
	if rc.Wifi {
		row(w, "Interface", iface)
	}
	if rc.Bluetooth {
		row(w, "Adapter", rc.Settings.BluetoothAdapter)
	}
	row(w, "Output", rc.OutputDir)
	if rc.Cycles > 0 {
		row(w, "Cycles", fmt.Sprint(rc.Cycles))
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, res *usecase.OrchestrationResult, sums []reporter.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Run summary"))

	status := successStyle.Render(res.Status)
	if res.Status != usecase.PhaseCompleted {
		status = warningStyle.Render(res.Status)
	}
	row(w, "Status", status)
	row(w, "Cycles", fmt.Sprint(res.Cycles))
	row(w, "Duration", res.Duration.Round(time.Second).String())

	for _, s := range sums {
		fmt.Fprintln(w, headingStyle.Render(domainLabel(s.Domain)))
		row(w, "Results", fmt.Sprint(s.Results))
		creds := fmt.Sprint(s.Credentials)
		if s.Credentials > 0 {
			creds = successStyle.Render(creds)
		}
		row(w, "Successes", fmt.Sprint(s.Successes))
		row(w, "Credentials", creds)
		if s.JSONPath != "" {
			row(w, "JSON", s.JSONPath)
			row(w, "CSV", s.CSVPath)
		} else {
			row(w, "Files", mutedStyle.Render("nothing found"))
		}
	}
	for _, e := range res.Errors {
		fmt.Fprintln(w, errorStyle.Render("! ")+e)
	}
}

func printAttacks(w io.Writer, registry *classifier.Registry, timeouts config.TimeoutSettings) {
	for _, d := range entity.Domains {
		fmt.Fprintln(w, headingStyle.Render(domainLabel(d)))
		for _, m := range registry.Modules(d) {
			desc := m.Description
			if m.Aggregate {
				desc += mutedStyle.Render(" (once per cycle)")
			}
			fmt.Fprintln(w, "  "+nameStyle.Render(string(m.Attack))+
				timeoutStyle.Render(m.Timeout(timeouts).String())+desc)
		}
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}
