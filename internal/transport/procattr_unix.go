//go:build unix && !linux

package transport

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the command in its own process group. Pdeathsig is
// Linux-only; elsewhere orphans rely on an explicit Terminate.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
