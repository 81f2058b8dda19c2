// Package parser turns external tool output into attack results. Every
// function here is pure: identical input always yields an identical result,
// and unrecognised output is a failed result, never a panic or an error.
package parser

import (
	"regexp"
	"strings"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

// Step names shared between invocation builders and parsers
const (
	StepChannel   = "channel"
	StepAttack    = "attack"
	StepCapture   = "capture"
	StepCrack     = "crack"
	StepL2Ping    = "l2ping"
	StepBettercap = "bettercap"
	StepPiscan    = "piscan"
	StepAuth      = "auth"
	StepPair      = "pair"
	StepConnect   = "connect"
)

// Func parses the raw output of one dispatch against its target
type Func func(raw entity.RawOutput, t entity.Target) entity.AttackResult

var macRe = regexp.MustCompile(`\b([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5})\b`)

// firstSubmatch returns the first non-empty capture group of re in s
func firstSubmatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g = strings.TrimSpace(g); g != "" {
			return g, true
		}
	}
	return "", false
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
