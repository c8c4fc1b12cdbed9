package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "build.started", "build.phase_changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeBuildStarted      = "build.started"
	TypeBuildStopped      = "build.stopped"
	TypePhaseChanged      = "build.phase_changed"
	TypeLifecycle         = "build.lifecycle"
	TypeToolDetected      = "build.tool_detected"
	TypeTransportDegraded = "build.transport_degraded"
	TypeProfilesReloaded  = "build.profiles_reloaded"
	TypeProcessExited     = "build.process_exited"
)

// matchAll subscribes to every event type.
const matchAll = "*"

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Build Lifecycle Events
// -----------------------------------------------------------------------------

// BuildStartedEvent is emitted after a build process has been spawned.
type BuildStartedEvent struct {
	baseEvent
	BuildID   string // Unique identifier for this invocation
	Label     string // Display label (terminal title)
	Command   string // Command line as given by the caller
	Dir       string // Working directory
	Transport string // "pty" or "pipe"
	Parsed    bool   // Whether output is being classified
}

// NewBuildStartedEvent creates a BuildStartedEvent.
func NewBuildStartedEvent(buildID, label, command, dir, transport string, parsed bool) BuildStartedEvent {
	return BuildStartedEvent{
		baseEvent: newBaseEvent(TypeBuildStarted),
		BuildID:   buildID,
		Label:     label,
		Command:   command,
		Dir:       dir,
		Transport: transport,
		Parsed:    parsed,
	}
}

// BuildStoppedEvent is emitted when a build is stopped by the caller.
type BuildStoppedEvent struct {
	baseEvent
	BuildID string
	Reason  string // "stop", "restart", "replaced", "dispose"
}

// NewBuildStoppedEvent creates a BuildStoppedEvent.
func NewBuildStoppedEvent(buildID, reason string) BuildStoppedEvent {
	return BuildStoppedEvent{
		baseEvent: newBaseEvent(TypeBuildStopped),
		BuildID:   buildID,
		Reason:    reason,
	}
}

// ProcessExitedEvent is emitted when the build process closes on its own.
type ProcessExitedEvent struct {
	baseEvent
	BuildID  string
	ExitCode int  // Only meaningful when HasCode is true
	HasCode  bool // False on transports with no reliable exit status
}

// NewProcessExitedEvent creates a ProcessExitedEvent.
func NewProcessExitedEvent(buildID string, exitCode int, hasCode bool) ProcessExitedEvent {
	return ProcessExitedEvent{
		baseEvent: newBaseEvent(TypeProcessExited),
		BuildID:   buildID,
		ExitCode:  exitCode,
		HasCode:   hasCode,
	}
}

// LifecycleEvent carries one classified output event.
type LifecycleEvent struct {
	baseEvent
	BuildID     string
	Kind        string // "build-start", "build-success", "build-error", "watch-ready"
	Tool        string
	Duration    time.Duration
	HasDuration bool
}

// NewLifecycleEvent creates a LifecycleEvent.
func NewLifecycleEvent(buildID, kind, tool string, duration time.Duration, hasDuration bool) LifecycleEvent {
	return LifecycleEvent{
		baseEvent:   newBaseEvent(TypeLifecycle),
		BuildID:     buildID,
		Kind:        kind,
		Tool:        tool,
		Duration:    duration,
		HasDuration: hasDuration,
	}
}

// PhaseChangedEvent is emitted when the build phase actually changes.
// Repeated transitions into the same phase are not published.
type PhaseChangedEvent struct {
	baseEvent
	BuildID  string
	OldPhase string
	NewPhase string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(buildID, oldPhase, newPhase string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		BuildID:   buildID,
		OldPhase:  oldPhase,
		NewPhase:  newPhase,
	}
}

// ToolDetectedEvent is emitted once per build, when output is first
// attributed to a build tool.
type ToolDetectedEvent struct {
	baseEvent
	BuildID string
	Tool    string
}

// NewToolDetectedEvent creates a ToolDetectedEvent.
func NewToolDetectedEvent(buildID, tool string) ToolDetectedEvent {
	return ToolDetectedEvent{
		baseEvent: newBaseEvent(TypeToolDetected),
		BuildID:   buildID,
		Tool:      tool,
	}
}

// -----------------------------------------------------------------------------
// Degradation and Configuration Events
// -----------------------------------------------------------------------------

// TransportDegradedEvent is emitted when the preferred transport could not
// spawn the build and the plain transport took over.
type TransportDegradedEvent struct {
	baseEvent
	BuildID   string
	Preferred string
	Fallback  string
	Reason    string
}

// NewTransportDegradedEvent creates a TransportDegradedEvent.
func NewTransportDegradedEvent(buildID, preferred, fallback, reason string) TransportDegradedEvent {
	return TransportDegradedEvent{
		baseEvent: newBaseEvent(TypeTransportDegraded),
		BuildID:   buildID,
		Preferred: preferred,
		Fallback:  fallback,
		Reason:    reason,
	}
}

// ProfilesReloadedEvent is emitted after custom tool profiles are reloaded.
type ProfilesReloadedEvent struct {
	baseEvent
	Loaded  int
	Skipped int
}

// NewProfilesReloadedEvent creates a ProfilesReloadedEvent.
func NewProfilesReloadedEvent(loaded, skipped int) ProfilesReloadedEvent {
	return ProfilesReloadedEvent{
		baseEvent: newBaseEvent(TypeProfilesReloaded),
		Loaded:    loaded,
		Skipped:   skipped,
	}
}
