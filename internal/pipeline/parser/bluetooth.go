package parser

import (
	"strconv"
	"strings"

	"github.com/Nsomnia/WiFiddle-Wireless-Fiddle-PlayAllRFStrings/internal/entity"
)

// Markers recorded when an attack path cannot yield real material
const (
	KeyUnavailable   = entity.ValueUnavailable
	PayloadAttempted = "hid-injection-attempted"
)

// DoS merges the link-layer ping and the bettercap probe. Either probe
// completing cleanly is a success.
func DoS(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)

	ok := false
	for _, name := range []string{StepL2Ping, StepBettercap} {
		step, present := raw.Step(name)
		if !present {
			res.Extracted[name] = "skipped"
			continue
		}
		clean := step.Clean()
		res.Extracted[name] = outcome(clean)
		ok = ok || clean
	}
	res.Success = ok
	return res
}

// JustWorks requires an explicit pairing success marker. The connection
// attempt that follows never changes the outcome.
func JustWorks(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)

	pair, ok := raw.Step(StepPair)
	if !ok || !strings.Contains(pair.Stdout, "Pairing successful") {
		return res
	}
	res.Success = true
	res.Extracted[entity.KeyKey] = KeyUnavailable

	if conn, ok := raw.Step(StepConnect); ok {
		res.Extracted[entity.KeyConnected] = strconv.FormatBool(strings.Contains(conn.Stdout, "Connection successful"))
	}
	return res
}

// BlueDucky succeeds when the injector exits without stderr
func BlueDucky(raw entity.RawOutput, t entity.Target) entity.AttackResult {
	res := entity.NewResult(raw, t)

	step, ok := raw.Step(StepAttack)
	if !ok || !step.Clean() {
		return res
	}
	res.Success = true
	res.Extracted[entity.KeyPayload] = PayloadAttempted
	return res
}
