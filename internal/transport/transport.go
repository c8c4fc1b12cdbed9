// Package transport spawns build commands and streams their output.
//
// Two transports exist. The pty transport runs the command attached to a
// pseudo-terminal (creack/pty on Unix, ConPTY on Windows) so build tools
// emit the same output they would in an interactive terminal, which is what
// tool profiles are written against. The pipe transport captures stdout and
// stderr directly; it works everywhere but is treated as lower fidelity and
// its output is not classified.
//
// Both run the command through the platform shell in its own process group
// so that Terminate reaches every child a dev server forks.
package transport

import (
	"context"
	"os"
	"time"

	"github.com/kirbytools/buildwatch/internal/logging"
)

// Transport names.
const (
	NamePTY  = "pty"
	NamePipe = "pipe"
)

// DefaultTerminateTimeout is how long Terminate waits after the graceful
// signal before force-killing the process group.
const DefaultTerminateTimeout = 2 * time.Second

// Default pseudo-terminal dimensions.
const (
	DefaultCols = 120
	DefaultRows = 40
)

// MessageKind distinguishes output from termination.
type MessageKind int

const (
	// MessageOutput carries a chunk of process output.
	MessageOutput MessageKind = iota
	// MessageExit is the final message of a session.
	MessageExit
)

// Message is one item on a session's message stream.
type Message struct {
	Kind MessageKind
	Data string

	// ExitCode is only meaningful on MessageExit when HasCode is true.
	ExitCode int
	HasCode  bool
}

// Spec describes a command to spawn.
type Spec struct {
	Command    string
	Dir        string
	Env        []string // Extra KEY=VALUE pairs
	InheritEnv bool     // Start from the current process environment
	Cols, Rows int      // pty only; zero selects the defaults
}

func (s Spec) environ() []string {
	var env []string
	if s.InheritEnv {
		env = append(env, os.Environ()...)
	}
	return append(env, s.Env...)
}

// Session is a running command.
type Session interface {
	// Messages delivers output chunks in order, then one MessageExit, then
	// is closed. After Terminate is called, pending output may be dropped.
	Messages() <-chan Message

	// Terminate signals the process group gracefully and force-kills it if
	// it has not exited within the terminate timeout. It blocks until the
	// process is gone or ctx is done. Safe to call more than once.
	Terminate(ctx context.Context) error

	// Done is closed once the process has exited and all output is read.
	Done() <-chan struct{}

	// PID returns the root process id.
	PID() int
}

// Transport spawns sessions.
type Transport interface {
	// Name returns NamePTY or NamePipe.
	Name() string

	// Structured reports whether the transport's output is faithful enough
	// to be classified by a parser.
	Structured() bool

	// Spawn starts the command. The returned session must eventually be
	// terminated or run to completion.
	Spawn(ctx context.Context, spec Spec) (Session, error)
}

// Options configures the built-in transports.
type Options struct {
	TerminateTimeout time.Duration
	Logger           *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.TerminateTimeout <= 0 {
		o.TerminateTimeout = DefaultTerminateTimeout
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}
