//go:build windows

package transport

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/UserExistsError/conpty"
)

// startPTYWithSize starts the command in a ConPTY. ConPTY creates the
// process itself, so cmd.Process is filled in afterwards for signalling.
func startPTYWithSize(cmd *exec.Cmd, cols, rows int) (ptyHandle, error) {
	cmdLine := buildCmdLine(cmd.Args)

	opts := []conpty.ConPtyOption{
		conpty.ConPtyDimensions(cols, rows),
	}
	if cmd.Dir != "" {
		opts = append(opts, conpty.ConPtyWorkDir(cmd.Dir))
	}
	if cmd.Env != nil {
		opts = append(opts, conpty.ConPtyEnv(cmd.Env))
	}

	cpty, err := conpty.Start(cmdLine, opts...)
	if err != nil {
		return nil, err
	}

	pid := cpty.Pid()
	proc, err := os.FindProcess(int(pid))
	if err != nil {
		_ = cpty.Close()
		return nil, fmt.Errorf("find conpty process %d: %w", pid, err)
	}
	cmd.Process = proc
	return cpty, nil
}

func probePTY() error {
	if !conpty.IsConPtyAvailable() {
		return errors.New("ConPTY requires Windows 10 1809 or later")
	}
	return nil
}

func waitPTY(cmd *exec.Cmd) (int, bool) {
	state, err := cmd.Process.Wait()
	if err != nil {
		return 0, false
	}
	return state.ExitCode(), true
}
