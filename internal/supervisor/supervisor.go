// Package supervisor runs one build at a time and folds its output into an
// observable build phase.
//
// A [Supervisor] spawns the build through a transport, feeds output to a
// parser, and drives a small state machine:
//
//	Idle -> Building -> Ready | WatchActive | Error
//	WatchActive -> Rebuilding -> WatchActive | Error
//
// A fallback timer resolves builds that never print an explicit signal.
// Starting a build while another is running stops the first. Stop always
// lands in Idle.
//
// Phase changes are published on an [event.Bus] as build.phase_changed;
// [Supervisor.OnStateChange] is a typed convenience over that subscription.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirbytools/buildwatch/internal/errors"
	"github.com/kirbytools/buildwatch/internal/event"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/parser"
	"github.com/kirbytools/buildwatch/internal/profile"
	"github.com/kirbytools/buildwatch/internal/transport"
)

// Request describes a build to start.
type Request struct {
	Command string
	Dir     string
	Label   string
	Env     []string

	// Cols and Rows size the pseudo-terminal; zero uses the transport default.
	Cols, Rows int
}

// StateChange is delivered to OnStateChange observers.
type StateChange struct {
	BuildID string
	Old     Phase
	New     Phase
}

// Supervisor owns at most one running build.
type Supervisor struct {
	opts      Options
	logger    *logging.Logger
	bus       *event.Bus
	preferred transport.Transport
	fallback  transport.Transport

	mu       sync.Mutex
	disposed bool
	status   buildStatus
	parser   *parser.Parser // reused across builds; attached only when parsing
	parsing  bool           // parser attached to the current build
	profiles *profile.Set
	sess     transport.Session
	gen      uint64 // bumped on every start and stop; stale callbacks compare against it
	buildID  string
	last     Request
	timer    *time.Timer

	// Notifications are queued under mu and delivered in order by whichever
	// goroutine is draining, so observers may call back into the Supervisor.
	queueMu  sync.Mutex
	queue    []event.Event
	draining bool

	terminations sync.WaitGroup
}

// New creates a Supervisor in the Idle phase.
func New(opts Options) (*Supervisor, error) {
	opts = opts.withDefaults()

	preferred, fallback := opts.Preferred, opts.Fallback
	if preferred == nil {
		var err error
		preferred, fallback, err = transport.Resolve(transport.ModeAuto, transport.Options{
			TerminateTimeout: opts.TerminateTimeout,
			Logger:           opts.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	s := &Supervisor{
		opts:      opts,
		logger:    opts.Logger.WithComponent("supervisor"),
		bus:       opts.Bus,
		preferred: preferred,
		fallback:  fallback,
		profiles:  profile.NewSet(opts.Profiles),
	}
	s.parser = parser.New(
		parser.WithProfiles(s.profiles),
		parser.WithBufferSize(opts.BufferSize),
		parser.WithClock(opts.Now),
		parser.WithLogger(opts.Logger),
	)
	return s, nil
}

// Bus returns the bus the Supervisor publishes on.
func (s *Supervisor) Bus() *event.Bus { return s.bus }

// Start stops any running build and starts req. Spawn failures do not
// return an error: the build moves to the Error phase instead.
func (s *Supervisor) Start(ctx context.Context, req Request) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errors.ErrDisposed
	}
	s.startLocked(ctx, req)
	s.mu.Unlock()
	s.drain()
	return nil
}

func (s *Supervisor) startLocked(ctx context.Context, req Request) {
	s.stopLocked("replaced")

	s.gen++
	gen := s.gen
	s.buildID = uuid.NewString()
	s.last = req
	log := s.logger.WithBuild(s.buildID)

	s.transitionLocked(s.status.begin(s.opts.Now()))

	spec := transport.Spec{
		Command:    req.Command,
		Dir:        req.Dir,
		Env:        req.Env,
		InheritEnv: s.opts.InheritEnv,
		Cols:       req.Cols,
		Rows:       req.Rows,
	}
	tr := s.preferred
	sess, err := tr.Spawn(ctx, spec)
	if err != nil && s.fallback != nil && errors.IsRecoverable(err) {
		log.Warn("preferred transport failed, falling back",
			"transport", tr.Name(),
			"fallback", s.fallback.Name(),
			"error", err.Error())
		s.enqueue(event.NewTransportDegradedEvent(s.buildID, tr.Name(), s.fallback.Name(), err.Error()))
		tr = s.fallback
		sess, err = tr.Spawn(ctx, spec)
	}
	if err != nil {
		logFailure(log, "build failed to spawn", err, "command", req.Command)
		s.transitionLocked(s.status.fail())
		return
	}

	s.sess = sess
	s.parsing = s.opts.ParseOutput && tr.Structured()
	s.parser.Reset()

	log.Info("build started",
		"command", req.Command,
		"dir", req.Dir,
		"transport", tr.Name(),
		"pid", sess.PID(),
		"parsing", s.parsing)
	s.enqueue(event.NewBuildStartedEvent(s.buildID, req.Label, req.Command, req.Dir, tr.Name(), s.parsing))

	s.timer = time.AfterFunc(s.opts.FallbackDelay, func() { s.onFallback(gen) })
	go s.watch(gen, req.Label, sess)
}

// Stop terminates the running build, if any, and returns to Idle with
// metrics cleared. Termination of the process continues in the background.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errors.ErrDisposed
	}
	s.stopLocked("stop")
	s.mu.Unlock()
	s.drain()
	return nil
}

func (s *Supervisor) stopLocked(reason string) {
	s.gen++
	s.stopTimerLocked()

	if s.sess != nil {
		sess := s.sess
		s.sess = nil
		s.enqueue(event.NewBuildStoppedEvent(s.buildID, reason))
		s.logger.WithBuild(s.buildID).Info("stopping build", "reason", reason, "pid", sess.PID())

		s.terminations.Add(1)
		go func() {
			defer s.terminations.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 3*s.opts.TerminateTimeout)
			defer cancel()
			if err := sess.Terminate(ctx); err != nil {
				logFailure(s.logger, "build process did not terminate cleanly", err, "pid", sess.PID())
			}
		}()
	}

	s.parser.Reset()
	s.parsing = false
	s.transitionLocked(s.status.reset())
}

// Restart stops the build, waits the restart grace period so the old
// terminal can release, then starts req. An empty req.Command restarts the
// last request.
func (s *Supervisor) Restart(ctx context.Context, req Request) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errors.ErrDisposed
	}
	if req.Command == "" {
		req = s.last
	}
	s.stopLocked("restart")
	s.mu.Unlock()
	s.drain()

	timer := time.NewTimer(s.opts.RestartGrace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return s.Start(ctx, req)
}

// Show asks the presenter to surface the running build's output. It does
// not change state.
func (s *Supervisor) Show() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return errors.ErrDisposed
	}
	running := s.sess != nil
	label := s.last.Label
	s.mu.Unlock()

	if running {
		s.opts.Presenter.Show(label)
	}
	return nil
}

// Dispose stops any running build, removes every observer and makes all
// further calls fail with ErrDisposed. It waits for stopped processes to
// exit. Calling it again is a no-op.
func (s *Supervisor) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.stopLocked("dispose")
	s.disposed = true
	s.mu.Unlock()

	s.drain()
	s.bus.Clear()
	s.terminations.Wait()
	releaseShared(s)
	return nil
}

// OnStateChange registers fn for phase transitions. fn is not called when a
// transition leaves the phase unchanged. The returned func unsubscribes.
func (s *Supervisor) OnStateChange(fn func(StateChange)) (func(), error) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return func() {}, errors.ErrDisposed
	}

	id := s.bus.Subscribe(event.TypePhaseChanged, func(e event.Event) {
		pc, ok := e.(event.PhaseChangedEvent)
		if !ok {
			return
		}
		oldPhase, _ := ParsePhase(pc.OldPhase)
		newPhase, _ := ParsePhase(pc.NewPhase)
		fn(StateChange{BuildID: pc.BuildID, Old: oldPhase, New: newPhase})
	})
	return func() { s.bus.Unsubscribe(id) }, nil
}

// SetProfiles replaces the custom profiles. A build whose tool is already
// detected keeps it.
func (s *Supervisor) SetProfiles(custom []*profile.Profile) {
	s.mu.Lock()
	s.profiles = profile.NewSet(custom)
	s.parser.SetProfiles(s.profiles)
	s.mu.Unlock()
}

// State returns the current phase.
func (s *Supervisor) State() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.phase
}

// Metrics returns a snapshot of the build metrics.
func (s *Supervisor) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.metrics
}

// IsRunning reports whether a build process is attached.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

// InWatchMode reports whether the current build has entered watch mode.
func (s *Supervisor) InWatchMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.watchMode
}

// DetectedTool returns the tool identified for the current build.
func (s *Supervisor) DetectedTool() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.parsing {
		return "", false
	}
	return s.parser.DetectedTool()
}

// BuildID returns the current build's identifier, or "" when idle.
func (s *Supervisor) BuildID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.phase == PhaseIdle {
		return ""
	}
	return s.buildID
}

// watch pumps one session's messages until the stream closes.
func (s *Supervisor) watch(gen uint64, label string, sess transport.Session) {
	for msg := range sess.Messages() {
		switch msg.Kind {
		case transport.MessageOutput:
			s.handleOutput(gen, label, msg.Data)
		case transport.MessageExit:
			s.handleExit(gen, msg)
		}
	}
}

func (s *Supervisor) handleOutput(gen uint64, label, data string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.opts.Presenter.Write(label, []byte(data))

	if s.parsing {
		_, hadTool := s.parser.DetectedTool()
		events := s.parser.Parse(data)
		if !hadTool {
			if tool, ok := s.parser.DetectedTool(); ok {
				s.logger.WithBuild(s.buildID).WithTool(tool).Info("build tool detected")
				s.enqueue(event.NewToolDetectedEvent(s.buildID, tool))
			}
		}
		for _, ev := range events {
			s.enqueue(event.NewLifecycleEvent(s.buildID, ev.Kind.String(), ev.Tool, ev.Duration, ev.HasDuration))
			t := s.status.apply(ev)
			if t.clearBuffer {
				s.parser.ClearBuffer()
			}
			s.transitionLocked(t)
		}
	}
	s.mu.Unlock()
	s.drain()
}

func (s *Supervisor) handleExit(gen uint64, msg transport.Message) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	log := s.logger.WithBuild(s.buildID)
	s.sess = nil
	s.stopTimerLocked()
	s.enqueue(event.NewProcessExitedEvent(s.buildID, msg.ExitCode, msg.HasCode))

	t := s.status.closed()
	if t.to == PhaseError {
		log.Warn("build process closed unexpectedly",
			"phase", t.from.String(),
			"exit_code", msg.ExitCode,
			"has_code", msg.HasCode)
	} else {
		log.Info("build process exited", "exit_code", msg.ExitCode, "has_code", msg.HasCode)
		s.parser.Reset()
		s.parsing = false
	}
	s.transitionLocked(t)
	s.mu.Unlock()
	s.drain()
}

func (s *Supervisor) onFallback(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	t := s.status.fallback()
	if t.changed() {
		s.logger.WithBuild(s.buildID).Debug("fallback timer resolved build",
			"delay", s.opts.FallbackDelay.String())
	}
	s.transitionLocked(t)
	s.mu.Unlock()
	s.drain()
}

// transitionLocked records t, cancelling the fallback timer once the build
// has left Building, and queues a notification if the phase changed.
func (s *Supervisor) transitionLocked(t transition) {
	if s.status.phase != PhaseBuilding {
		s.stopTimerLocked()
	}
	if !t.changed() {
		return
	}
	s.logger.WithBuild(s.buildID).Info("build phase changed",
		"old_phase", t.from.String(),
		"new_phase", t.to.String())
	s.enqueue(event.NewPhaseChangedEvent(s.buildID, t.from.String(), t.to.String()))
}

func (s *Supervisor) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Supervisor) enqueue(e event.Event) {
	s.queueMu.Lock()
	s.queue = append(s.queue, e)
	s.queueMu.Unlock()
}

// drain delivers queued notifications. Only one goroutine drains at a time;
// others, including observers re-entering the Supervisor, leave their
// notifications for the active drainer.
func (s *Supervisor) drain() {
	s.queueMu.Lock()
	if s.draining {
		s.queueMu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()
		s.bus.Publish(e)
		s.queueMu.Lock()
	}
	s.draining = false
	s.queueMu.Unlock()
}

// logFailure logs err at the level its severity calls for.
func logFailure(log *logging.Logger, msg string, err error, args ...any) {
	sev := errors.GetSeverity(err)
	args = append(args, "error", err.Error(), "severity", sev.String())
	switch sev {
	case errors.SeverityDebug:
		log.Debug(msg, args...)
	case errors.SeverityWarning:
		log.Warn(msg, args...)
	default:
		log.Error(msg, args...)
	}
}
