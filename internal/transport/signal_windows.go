//go:build windows

package transport

import (
	"errors"
	"os/exec"
	"strconv"
	"syscall"
)

// setProcGroup starts the command in a new process group.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// signalGroup ends the process tree rooted at pid. Without /F taskkill asks
// console apps to close, the nearest thing to SIGTERM.
func signalGroup(pid int, force bool) error {
	args := []string{"/T", "/PID", strconv.Itoa(pid)}
	if force {
		args = append([]string{"/F"}, args...)
	}
	return exec.Command("taskkill", args...).Run()
}

// shellExecArgs runs command through cmd.exe.
func shellExecArgs(command string) (prog string, args []string) {
	return "cmd", []string{"/c", command}
}

func exitStatus(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	return exitErr.ExitCode(), true
}
