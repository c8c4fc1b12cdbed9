//go:build !windows

package transport

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalGroup signals every process in the group led by pid.
func signalGroup(pid int, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// shellExecArgs runs command through the POSIX shell.
func shellExecArgs(command string) (prog string, args []string) {
	return "sh", []string{"-c", command}
}

// exitStatus converts the result of cmd.Wait into an exit code. Processes
// killed by a signal report 128+signal, as a shell would.
func exitStatus(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), true
	}
	return exitErr.ExitCode(), true
}
