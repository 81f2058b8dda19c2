package entity

import (
	"strings"
	"time"
)

// Keys used in AttackResult.Extracted
const (
	KeyPIN       = "pin"
	KeyKey       = "key"
	KeyFile      = "file"
	KeyPayload   = "payload"
	KeyConnected = "connected"
	KeyL2Ping    = "l2ping"
	KeyBettercap = "bettercap"
)

// ValueUnavailable marks a key the attack path cannot recover
const ValueUnavailable = "unavailable"

// Credential is a recovered network secret
type Credential struct {
	BSSID    string `json:"bssid"`
	ESSID    string `json:"essid,omitempty"`
	Password string `json:"password"`
}

// NetworkRecord is an access point reported by an aggregate tool
type NetworkRecord struct {
	BSSID string `json:"bssid"`
	ESSID string `json:"essid,omitempty"`
}

// DeviceRecord is a Bluetooth device reported by an aggregate tool
type DeviceRecord struct {
	MAC  string `json:"mac"`
	Name string `json:"name,omitempty"`
}

// AttackResult is the outcome of one (target, attack) dispatch. It is never
// mutated after the parser returns it.
type AttackResult struct {
	ID          string            `json:"id"`
	Attack      Attack            `json:"attack"`
	Domain      Domain            `json:"domain"`
	TargetID    string            `json:"target_id"`
	TargetName  string            `json:"target_name,omitempty"`
	Success     bool              `json:"success"`
	Extracted   map[string]string `json:"extracted"`
	Credentials []Credential      `json:"credentials,omitempty"`
	Networks    []NetworkRecord   `json:"networks,omitempty"`
	Devices     []DeviceRecord    `json:"devices,omitempty"`
	RawOutput   string            `json:"raw_output"`
	Timestamp   time.Time         `json:"timestamp"`
}

// StepOutput is the captured output of one command step of an attack
type StepOutput struct {
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Status   CommandStatus `json:"status"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	// Artifact is the file the step was told to write, if any
	Artifact string `json:"artifact,omitempty"`
}

// Clean reports whether the step completed without stderr
func (s StepOutput) Clean() bool {
	return s.Status == CommandOk && strings.TrimSpace(s.Stderr) == ""
}

// RawOutput is the parser input for one dispatch
type RawOutput struct {
	InvocationID string       `json:"invocation_id"`
	Attack       Attack       `json:"attack"`
	Steps        []StepOutput `json:"steps"`
	Finished     time.Time    `json:"finished"`
}

// ValidText replaces each run of invalid UTF-8 with U+FFFD. Sanitized text
// is stored unchanged by the JSON snapshot and reads back equal.
func ValidText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Step returns the first step with the given name, its text made valid UTF-8
func (r RawOutput) Step(name string) (StepOutput, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			s.Stdout = ValidText(s.Stdout)
			s.Stderr = ValidText(s.Stderr)
			return s, true
		}
	}
	return StepOutput{}, false
}

// Stdout joins the stdout of every step in order
func (r RawOutput) Stdout() string {
	parts := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Stdout != "" {
			parts = append(parts, s.Stdout)
		}
	}
	return ValidText(strings.Join(parts, "\n"))
}

// Combined renders every step for the raw_output field
func (r RawOutput) Combined() string {
	var b strings.Builder
	for i, s := range r.Steps {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("$ ")
		b.WriteString(s.Command)
		b.WriteString(" [")
		b.WriteString(string(s.Status))
		b.WriteString("]\n")
		if s.Stdout != "" {
			b.WriteString(strings.TrimRight(s.Stdout, "\n"))
			b.WriteString("\n")
		}
		if s.Stderr != "" {
			b.WriteString("stderr: ")
			b.WriteString(strings.TrimRight(s.Stderr, "\n"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// NewResult starts a result for a target from the dispatch metadata. The
// caller fills in the attack specific fields before handing it out.
func NewResult(raw RawOutput, t Target) AttackResult {
	return AttackResult{
		ID:         raw.InvocationID,
		Attack:     raw.Attack,
		Domain:     t.Domain(),
		TargetID:   t.ID(),
		TargetName: ValidText(t.Label()),
		Extracted:  map[string]string{},
		RawOutput:  ValidText(raw.Combined()),
		Timestamp:  raw.Finished,
	}
}
