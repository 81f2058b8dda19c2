//go:build !windows

package cliexec

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	sigTerm = unix.SIGTERM
	sigKill = unix.SIGKILL
)

// setProcessGroup puts the child in its own group so helpers it forks die with it
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, sig)
	if err == unix.ESRCH {
		return nil
	}
	return err
}
