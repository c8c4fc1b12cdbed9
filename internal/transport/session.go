package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kirbytools/buildwatch/internal/errors"
	"github.com/kirbytools/buildwatch/internal/logging"
)

const (
	readBufferSize = 32 * 1024
	messageBacklog = 256

	// drainTimeout bounds how long output is read after the root process
	// exits; a backgrounded grandchild may otherwise hold the pty or pipes
	// open.
	drainTimeout = 200 * time.Millisecond
)

// waitFunc blocks until the root process exits.
type waitFunc func() (code int, hasCode bool)

// signalFunc delivers a graceful (force=false) or forceful signal.
type signalFunc func(force bool) error

// session is the transport-independent half of a running command.
type session struct {
	transport string
	pid       int
	timeout   time.Duration
	signal    signalFunc
	closeIO   func() error
	logger    *logging.Logger

	msgs    chan Message
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newSession(transport string, pid int, opts Options, signal signalFunc, closeIO func() error) *session {
	return &session{
		transport: transport,
		pid:       pid,
		timeout:   opts.TerminateTimeout,
		signal:    signal,
		closeIO:   closeIO,
		logger:    opts.Logger.With("transport", transport, "pid", pid),
		msgs:      make(chan Message, messageBacklog),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// run starts pumping readers and waits for the process. The process is
// reaped first; readers then get drainTimeout to reach EOF before the IO is
// closed under them, since a backgrounded grandchild may keep it open.
func (s *session) run(readers []io.Reader, wait waitFunc) {
	var wg conc.WaitGroup
	for _, r := range readers {
		wg.Go(func() { s.pump(r) })
	}

	go func() {
		code, hasCode := wait()
		s.drain(&wg)
		if s.closeIO != nil {
			_ = s.closeIO()
		}

		s.logger.Debug("process exited", "exit_code", code, "has_code", hasCode)
		select {
		case s.msgs <- Message{Kind: MessageExit, ExitCode: code, HasCode: hasCode}:
		case <-s.stopped:
		}
		close(s.msgs)
		close(s.done)
	}()
}

func (s *session) drain(wg *conc.WaitGroup) {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(drainTimeout):
		if s.closeIO != nil {
			_ = s.closeIO()
		}
		<-finished
	}
}

func (s *session) pump(r io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case s.msgs <- Message{Kind: MessageOutput, Data: string(buf[:n])}:
			case <-s.stopped:
				// Keep reading so the writer never blocks on a full pipe.
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *session) Messages() <-chan Message { return s.msgs }
func (s *session) Done() <-chan struct{}    { return s.done }
func (s *session) PID() int                 { return s.pid }

func (s *session) Terminate(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.stopped)
		err = s.terminate(ctx)
	})
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) terminate(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	if err := s.signal(false); err != nil {
		s.logger.Debug("graceful signal failed", "error", err.Error())
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.logger.Warn("process ignored graceful shutdown, killing", "timeout", s.timeout.String())
	if err := s.signal(true); err != nil {
		return errors.NewTransportError(s.transport, "signal", err)
	}
	return nil
}
