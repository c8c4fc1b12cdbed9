//go:build !windows

package transport

import (
	"os/exec"

	"github.com/creack/pty"
)

func startPTYWithSize(cmd *exec.Cmd, cols, rows int) (ptyHandle, error) {
	f, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func probePTY() error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return err
	}
	_ = tty.Close()
	return ptmx.Close()
}

func waitPTY(cmd *exec.Cmd) (int, bool) {
	return exitStatus(cmd.Wait())
}
