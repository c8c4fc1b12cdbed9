package supervisor

import (
	"io"
	"time"

	"github.com/kirbytools/buildwatch/internal/capture"
	"github.com/kirbytools/buildwatch/internal/config"
	"github.com/kirbytools/buildwatch/internal/event"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/profile"
	"github.com/kirbytools/buildwatch/internal/transport"
)

// Presenter surfaces build output to the user.
type Presenter interface {
	// Write receives raw output for the build labelled label.
	Write(label string, p []byte)
	// Show brings the build's output to the foreground.
	Show(label string)
}

// WriterPresenter copies output to an io.Writer. Show is a no-op because
// output is always visible.
type WriterPresenter struct {
	W io.Writer
}

// Write implements Presenter.
func (p WriterPresenter) Write(_ string, b []byte) { _, _ = p.W.Write(b) }

// Show implements Presenter.
func (p WriterPresenter) Show(string) {}

type nopPresenter struct{}

func (nopPresenter) Write(string, []byte) {}
func (nopPresenter) Show(string)          {}

// Options configures a Supervisor.
type Options struct {
	// ParseOutput attaches a parser to structured transports.
	ParseOutput bool

	FallbackDelay    time.Duration
	RestartGrace     time.Duration
	TerminateTimeout time.Duration
	BufferSize       int
	InheritEnv       bool

	// Preferred is tried first; Fallback is used when Preferred fails to
	// spawn. Leaving both nil resolves them in auto mode.
	Preferred transport.Transport
	Fallback  transport.Transport

	// Profiles are custom tool profiles, consulted before the built-ins.
	Profiles []*profile.Profile

	Presenter Presenter
	Bus       *event.Bus
	Logger    *logging.Logger

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// DefaultOptions returns options matching config.Default.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Build)
}

// OptionsFromConfig maps build configuration onto options. Transports and
// custom profiles are left for the caller to resolve.
func OptionsFromConfig(c config.BuildConfig) Options {
	return Options{
		ParseOutput:      c.ParseOutput,
		FallbackDelay:    c.FallbackDelay,
		RestartGrace:     c.RestartGrace,
		TerminateTimeout: c.TerminateTimeout,
		BufferSize:       c.BufferSize,
		InheritEnv:       c.InheritEnv,
	}
}

func (o Options) withDefaults() Options {
	d := config.Default().Build
	if o.FallbackDelay <= 0 {
		o.FallbackDelay = d.FallbackDelay
	}
	if o.RestartGrace < 0 {
		o.RestartGrace = 0
	}
	if o.TerminateTimeout <= 0 {
		o.TerminateTimeout = d.TerminateTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = capture.DefaultSize
	}
	if o.Presenter == nil {
		o.Presenter = nopPresenter{}
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Bus == nil {
		o.Bus = event.NewBus(o.Logger)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
