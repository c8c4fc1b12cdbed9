//go:build linux

package transport

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the command in its own process group and asks the
// kernel to SIGTERM it if buildwatch dies first.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
