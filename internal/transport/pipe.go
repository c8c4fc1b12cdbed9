package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/kirbytools/buildwatch/internal/errors"
)

// Pipe runs commands with stdout and stderr captured through pipes. Output
// from the two streams is interleaved in arrival order.
type Pipe struct {
	opts Options
}

// NewPipe returns the plain pipe transport.
func NewPipe(opts Options) *Pipe {
	return &Pipe{opts: opts.withDefaults()}
}

// Name implements Transport.
func (t *Pipe) Name() string { return NamePipe }

// Structured implements Transport. Tools detect a non-terminal and change
// their output, so pipe output is never classified.
func (t *Pipe) Structured() bool { return false }

// Spawn implements Transport.
func (t *Pipe) Spawn(ctx context.Context, spec Spec) (Session, error) {
	if spec.Command == "" {
		return nil, errors.ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, args := commandArgs(spec.Command)
	cmd := exec.Command(prog, args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.environ()
	setProcGroup(cmd)

	// The read ends belong to the session rather than to exec.Cmd, so Wait
	// does not close them and a grandchild holding the write ends cannot
	// delay the exit report past drainTimeout.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, errors.NewTransportError(NamePipe, "spawn", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, errors.NewTransportError(NamePipe, "spawn", err)
	}
	cmd.Stdout, cmd.Stderr = stdoutW, stderrW

	startErr := cmd.Start()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	if startErr != nil {
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, errors.NewTransportError(NamePipe, "spawn", fmt.Errorf("%w: %v", errors.ErrSpawnFailed, startErr))
	}

	var closeOnce sync.Once
	closeIO := func() error {
		var err error
		closeOnce.Do(func() { err = errors.Join(stdoutR.Close(), stderrR.Close()) })
		return err
	}

	pid := cmd.Process.Pid
	s := newSession(NamePipe, pid, t.opts,
		func(force bool) error { return signalGroup(pid, force) },
		closeIO)
	t.opts.Logger.Debug("spawned build process", "transport", NamePipe, "pid", pid, "dir", spec.Dir)

	s.run([]io.Reader{stdoutR, stderrR}, func() (int, bool) { return exitStatus(cmd.Wait()) })
	return s, nil
}
