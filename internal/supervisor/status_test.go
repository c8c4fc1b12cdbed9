package supervisor

import (
	"testing"
	"time"

	"github.com/kirbytools/buildwatch/internal/parser"
)

func TestPhase_String(t *testing.T) {
	for p := PhaseIdle; p <= PhaseError; p++ {
		got, ok := ParsePhase(p.String())
		if !ok || got != p {
			t.Errorf("ParsePhase(%q) = %v, %v; want %v", p.String(), got, ok, p)
		}
	}
	if Phase(99).String() != "unknown" {
		t.Errorf("out of range phase = %q", Phase(99).String())
	}
	if _, ok := ParsePhase("compiling"); ok {
		t.Error("ParsePhase should reject unknown names")
	}
}

func lifecycleEvent(kind parser.EventKind) parser.Event {
	return parser.Event{Kind: kind, Tool: "Webpack", Timestamp: time.Unix(1700000000, 0)}
}

func TestBuildStatus_Apply(t *testing.T) {
	tests := []struct {
		name      string
		phase     Phase
		watchMode bool
		event     parser.EventKind
		want      Phase
		clear     bool
	}{
		{"building success", PhaseBuilding, false, parser.EventSuccess, PhaseReady, false},
		{"building success in watch mode", PhaseBuilding, true, parser.EventSuccess, PhaseWatchActive, false},
		{"building watch ready", PhaseBuilding, false, parser.EventWatchReady, PhaseWatchActive, false},
		{"building error", PhaseBuilding, false, parser.EventError, PhaseError, false},
		{"building start", PhaseBuilding, false, parser.EventStart, PhaseBuilding, false},
		{"ready watch ready", PhaseReady, false, parser.EventWatchReady, PhaseWatchActive, false},
		{"ready success", PhaseReady, false, parser.EventSuccess, PhaseReady, false},
		{"ready error", PhaseReady, false, parser.EventError, PhaseReady, false},
		{"watching start", PhaseWatchActive, true, parser.EventStart, PhaseRebuilding, true},
		{"watching error", PhaseWatchActive, true, parser.EventError, PhaseError, false},
		{"watching success", PhaseWatchActive, true, parser.EventSuccess, PhaseWatchActive, false},
		{"rebuilding success", PhaseRebuilding, true, parser.EventSuccess, PhaseWatchActive, false},
		{"rebuilding error", PhaseRebuilding, true, parser.EventError, PhaseError, false},
		{"rebuilding start", PhaseRebuilding, true, parser.EventStart, PhaseRebuilding, false},
		{"error start while watching", PhaseError, true, parser.EventStart, PhaseRebuilding, true},
		{"error success while watching", PhaseError, true, parser.EventSuccess, PhaseWatchActive, false},
		{"error start one-shot", PhaseError, false, parser.EventStart, PhaseError, false},
		{"error success one-shot", PhaseError, false, parser.EventSuccess, PhaseError, false},
		{"error watch ready", PhaseError, false, parser.EventWatchReady, PhaseError, false},
		{"idle ignores events", PhaseIdle, false, parser.EventStart, PhaseIdle, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := buildStatus{phase: tc.phase, watchMode: tc.watchMode}
			tr := b.apply(lifecycleEvent(tc.event))
			if tr.from != tc.phase {
				t.Errorf("from = %s, want %s", tr.from, tc.phase)
			}
			if tr.to != tc.want || b.phase != tc.want {
				t.Errorf("to = %s (phase %s), want %s", tr.to, b.phase, tc.want)
			}
			if tr.clearBuffer != tc.clear {
				t.Errorf("clearBuffer = %v, want %v", tr.clearBuffer, tc.clear)
			}
		})
	}
}

func TestBuildStatus_WatchReadySetsWatchMode(t *testing.T) {
	b := buildStatus{phase: PhaseError}
	b.apply(lifecycleEvent(parser.EventWatchReady))
	if !b.watchMode {
		t.Error("watch ready should mark watch mode even without a transition")
	}

	b = buildStatus{phase: PhaseIdle}
	b.apply(lifecycleEvent(parser.EventWatchReady))
	if b.watchMode {
		t.Error("idle status should ignore events entirely")
	}
}

func TestBuildStatus_Metrics(t *testing.T) {
	start := time.Unix(1700000000, 0)
	var b buildStatus
	b.begin(start)
	if b.metrics.BuildStartedAt != start {
		t.Errorf("BuildStartedAt = %v, want %v", b.metrics.BuildStartedAt, start)
	}

	success := lifecycleEvent(parser.EventSuccess)
	success.Duration = 234 * time.Millisecond
	success.HasDuration = true
	b.apply(success)
	if !b.metrics.HasLastBuildDuration || b.metrics.LastBuildDuration != 234*time.Millisecond {
		t.Errorf("LastBuildDuration = %v (%v), want 234ms", b.metrics.LastBuildDuration, b.metrics.HasLastBuildDuration)
	}

	b.apply(lifecycleEvent(parser.EventWatchReady))
	b.apply(lifecycleEvent(parser.EventStart))
	rebuilt := lifecycleEvent(parser.EventSuccess)
	rebuilt.Timestamp = start.Add(time.Minute)
	b.apply(rebuilt)
	if b.metrics.RebuildCount != 1 {
		t.Errorf("RebuildCount = %d, want 1", b.metrics.RebuildCount)
	}
	if !b.metrics.LastRebuildAt.Equal(rebuilt.Timestamp) {
		t.Errorf("LastRebuildAt = %v, want %v", b.metrics.LastRebuildAt, rebuilt.Timestamp)
	}
	if !b.metrics.HasLastBuildDuration {
		t.Error("success without a duration should keep the previous duration")
	}

	tr := b.reset()
	if tr.to != PhaseIdle || b.metrics != (Metrics{}) || b.watchMode {
		t.Errorf("reset left %+v", b)
	}
}

func TestBuildStatus_Fallback(t *testing.T) {
	tests := []struct {
		name      string
		phase     Phase
		watchMode bool
		want      Phase
	}{
		{"silent one-shot", PhaseBuilding, false, PhaseReady},
		{"watch mode seen", PhaseBuilding, true, PhaseBuilding},
		{"already ready", PhaseReady, false, PhaseReady},
		{"watching", PhaseWatchActive, true, PhaseWatchActive},
		{"failed", PhaseError, false, PhaseError},
		{"idle", PhaseIdle, false, PhaseIdle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := buildStatus{phase: tc.phase, watchMode: tc.watchMode}
			tr := b.fallback()
			if tr.to != tc.want || b.phase != tc.want {
				t.Errorf("fallback: %s -> %s, want %s", tc.phase, tr.to, tc.want)
			}
			if tr.changed() != (tc.phase != tc.want) {
				t.Errorf("changed() = %v", tr.changed())
			}
		})
	}
}

func TestBuildStatus_Closed(t *testing.T) {
	tests := []struct {
		phase Phase
		want  Phase
	}{
		{PhaseBuilding, PhaseError},
		{PhaseRebuilding, PhaseError},
		{PhaseReady, PhaseIdle},
		{PhaseWatchActive, PhaseIdle},
		{PhaseError, PhaseIdle},
		{PhaseIdle, PhaseIdle},
	}
	for _, tc := range tests {
		t.Run(tc.phase.String(), func(t *testing.T) {
			b := buildStatus{phase: tc.phase, metrics: Metrics{RebuildCount: 3}}
			tr := b.closed()
			if tr.to != tc.want || b.phase != tc.want {
				t.Errorf("closed from %s = %s, want %s", tc.phase, tr.to, tc.want)
			}
			if tc.want == PhaseIdle && b.metrics != (Metrics{}) {
				t.Errorf("metrics not reset: %+v", b.metrics)
			}
			if tc.want == PhaseError && b.metrics.RebuildCount != 3 {
				t.Errorf("failure should keep metrics, got %+v", b.metrics)
			}
		})
	}
}
