package transport

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/kirbytools/buildwatch/internal/errors"
)

// ptyHandle abstracts the pseudo-terminal across Unix and Windows.
type ptyHandle interface {
	Read(p []byte) (int, error)
	Close() error
}

// PTY runs commands attached to a pseudo-terminal.
type PTY struct {
	opts Options
}

// NewPTY returns the pseudo-terminal transport.
func NewPTY(opts Options) *PTY {
	return &PTY{opts: opts.withDefaults()}
}

// Name implements Transport.
func (t *PTY) Name() string { return NamePTY }

// Structured implements Transport.
func (t *PTY) Structured() bool { return true }

// Probe reports whether a pseudo-terminal can be allocated on this host.
func (t *PTY) Probe() error {
	if err := probePTY(); err != nil {
		return errors.NewTransportError(NamePTY, "probe", fmt.Errorf("%w: %v", errors.ErrTransportUnavailable, err))
	}
	return nil
}

// Spawn implements Transport.
func (t *PTY) Spawn(ctx context.Context, spec Spec) (Session, error) {
	if spec.Command == "" {
		return nil, errors.ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, args := commandArgs(spec.Command)
	cmd := exec.Command(prog, args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(spec.environ(), "TERM=xterm-256color")

	cols, rows := spec.Cols, spec.Rows
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}

	// No Setpgid here: the pty makes the child a session leader, so its pid
	// already names the process group.
	h, err := startPTYWithSize(cmd, cols, rows)
	if err != nil {
		return nil, errors.NewTransportError(NamePTY, "spawn", fmt.Errorf("%w: %v", errors.ErrSpawnFailed, err))
	}

	pid := cmd.Process.Pid
	s := newSession(NamePTY, pid, t.opts,
		func(force bool) error { return signalGroup(pid, force) },
		h.Close)
	t.opts.Logger.Debug("spawned build process", "transport", NamePTY, "pid", pid, "dir", spec.Dir)

	s.run([]io.Reader{h}, func() (int, bool) { return waitPTY(cmd) })
	return s, nil
}
