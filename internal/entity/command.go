package entity

import (
	"strings"
	"time"
)

// CommandStatus is the outcome class of one external invocation
type CommandStatus string

const (
	CommandOk       CommandStatus = "ok"
	CommandTimedOut CommandStatus = "timed_out"
	CommandFailed   CommandStatus = "failed"
)

// CommandSpec is a fully formed external invocation. Args are passed to the
// process as is; no shell is involved.
type CommandSpec struct {
	Name    string        `json:"name"`
	Path    string        `json:"path"`
	Args    []string      `json:"args,omitempty"`
	Timeout time.Duration `json:"timeout"`
	// Window marks tools that run until stopped. Reaching the timeout ends
	// the capture window and the collected output is kept.
	Window bool `json:"window,omitempty"`
}

// String renders the invocation for logs
func (c CommandSpec) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// CommandOutput is what the command runner returns for one invocation
type CommandOutput struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Status   CommandStatus `json:"status"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Clean reports whether the invocation ran to completion without any stderr
func (o CommandOutput) Clean() bool {
	return o.Status == CommandOk && strings.TrimSpace(o.Stderr) == ""
}
