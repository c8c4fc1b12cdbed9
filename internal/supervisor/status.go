package supervisor

import (
	"time"

	"github.com/kirbytools/buildwatch/internal/parser"
)

// Phase is the observable state of a supervised build.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuilding
	PhaseReady
	PhaseWatchActive
	PhaseRebuilding
	PhaseError
)

var phaseNames = [...]string{
	PhaseIdle:        "idle",
	PhaseBuilding:    "building",
	PhaseReady:       "ready",
	PhaseWatchActive: "watch-active",
	PhaseRebuilding:  "rebuilding",
	PhaseError:       "error",
}

// String returns the phase name.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, bool) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), true
		}
	}
	return PhaseIdle, false
}

// Metrics is a snapshot of build timing. It is reset whenever the build
// fully stops.
type Metrics struct {
	// LastBuildDuration is valid only when HasLastBuildDuration is true.
	LastBuildDuration    time.Duration
	HasLastBuildDuration bool
	LastRebuildAt        time.Time // zero until the first rebuild completes
	RebuildCount         int
	BuildStartedAt       time.Time
}

// transition describes the effect of folding one input into the status.
type transition struct {
	from, to    Phase
	clearBuffer bool
}

func (t transition) changed() bool { return t.from != t.to }

// buildStatus is the state machine. It holds no locks and performs no IO;
// the Supervisor owns synchronization and side effects.
type buildStatus struct {
	phase     Phase
	watchMode bool
	metrics   Metrics
}

// begin enters Building for a fresh build.
func (b *buildStatus) begin(now time.Time) transition {
	t := transition{from: b.phase, to: PhaseBuilding}
	b.phase = PhaseBuilding
	b.watchMode = false
	b.metrics = Metrics{BuildStartedAt: now}
	return t
}

// reset returns to Idle and clears watch mode and metrics.
func (b *buildStatus) reset() transition {
	t := transition{from: b.phase, to: PhaseIdle}
	*b = buildStatus{}
	return t
}

// fail enters Error without touching metrics.
func (b *buildStatus) fail() transition {
	t := transition{from: b.phase, to: PhaseError}
	b.phase = PhaseError
	return t
}

// fallback resolves a silent one-shot build. It applies only while still
// Building and never once watch mode has been seen.
func (b *buildStatus) fallback() transition {
	t := transition{from: b.phase, to: b.phase}
	if b.phase == PhaseBuilding && !b.watchMode {
		b.phase = PhaseReady
		t.to = PhaseReady
	}
	return t
}

// closed handles the process going away on its own. A close mid-build is a
// failure; anything else is a normal end of session.
func (b *buildStatus) closed() transition {
	switch b.phase {
	case PhaseBuilding, PhaseRebuilding:
		return b.fail()
	default:
		return b.reset()
	}
}

// apply folds one lifecycle event into the status.
func (b *buildStatus) apply(ev parser.Event) transition {
	t := transition{from: b.phase, to: b.phase}
	if b.phase == PhaseIdle {
		return t
	}

	if ev.Kind == parser.EventWatchReady {
		b.watchMode = true
	}
	if ev.Kind == parser.EventSuccess && ev.HasDuration {
		b.metrics.LastBuildDuration = ev.Duration
		b.metrics.HasLastBuildDuration = true
	}

	switch b.phase {
	case PhaseBuilding:
		switch ev.Kind {
		case parser.EventSuccess:
			if b.watchMode {
				t.to = PhaseWatchActive
			} else {
				t.to = PhaseReady
			}
		case parser.EventWatchReady:
			t.to = PhaseWatchActive
		case parser.EventError:
			t.to = PhaseError
		}

	case PhaseReady:
		if ev.Kind == parser.EventWatchReady {
			t.to = PhaseWatchActive
		}

	case PhaseWatchActive:
		switch ev.Kind {
		case parser.EventStart:
			t.to = PhaseRebuilding
			t.clearBuffer = true
		case parser.EventError:
			t.to = PhaseError
		}

	case PhaseRebuilding:
		switch ev.Kind {
		case parser.EventSuccess:
			t.to = PhaseWatchActive
			b.recordRebuild(ev.Timestamp)
		case parser.EventError:
			t.to = PhaseError
		}

	case PhaseError:
		// A watcher keeps running after a failed build; let it recover.
		if b.watchMode {
			switch ev.Kind {
			case parser.EventStart:
				t.to = PhaseRebuilding
				t.clearBuffer = true
			case parser.EventSuccess:
				t.to = PhaseWatchActive
				b.recordRebuild(ev.Timestamp)
			}
		}
	}

	b.phase = t.to
	return t
}

func (b *buildStatus) recordRebuild(at time.Time) {
	b.metrics.RebuildCount++
	b.metrics.LastRebuildAt = at
}
