//go:build !windows

package cli

import (
	"os"
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the re-executed server in its own session so a
// detached `pakd serve` survives the launching terminal closing.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// isProcessRunning reports whether the PID from the pid file still points at
// a live process. Signal 0 probes without delivering anything.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// stopProcess asks a detached server to shut down gracefully. SIGTERM goes
// through the same signal.NotifyContext path as Ctrl-C on a foreground run.
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
