// Package parser classifies streaming build tool output into lifecycle
// events.
//
// A [Parser] is a per-session classifier. Output chunks are stripped of ANSI
// escape sequences and appended to a bounded rolling buffer. Until a tool is
// identified, detection runs against the accumulated buffer, because a
// tool's banner and its first lifecycle line may arrive in separate chunks.
// Once identified, the tool is locked in for the session and each chunk (not
// the buffer) is matched against the tool's start, success, error and
// watch-ready lists, in that order.
package parser

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/kirbytools/buildwatch/internal/capture"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/profile"
)

// secondsThreshold separates captured durations reported in seconds from
// those already in milliseconds.
const secondsThreshold = 100

// maxCarry bounds an unfinished escape sequence held between chunks. A
// sequence that never terminates is flushed once it grows past this.
const maxCarry = 4096

// EventKind identifies a lifecycle event.
type EventKind int

const (
	// EventStart marks the beginning of a build or rebuild.
	EventStart EventKind = iota
	// EventSuccess marks a completed build.
	EventSuccess
	// EventError marks a failed build.
	EventError
	// EventWatchReady marks a tool entering watch mode.
	EventWatchReady
)

// String returns the event kind's wire name.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "build-start"
	case EventSuccess:
		return "build-success"
	case EventError:
		return "build-error"
	case EventWatchReady:
		return "watch-ready"
	default:
		return "unknown"
	}
}

// Event is a single lifecycle event produced from one chunk.
type Event struct {
	Kind      EventKind
	Tool      string
	Timestamp time.Time

	// Duration is only meaningful when HasDuration is true, which can only
	// happen on EventSuccess.
	Duration    time.Duration
	HasDuration bool
}

// Parser is a per-build-session output classifier. It is safe for
// concurrent use, although callers normally feed it from one goroutine.
type Parser struct {
	mu sync.Mutex

	profiles     *profile.Set
	buffer       *capture.RollingBuffer
	tool         *profile.Profile
	pendingStart time.Time
	hasPending   bool
	carry        string // unfinished escape sequence from the previous chunk

	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithProfiles sets the detection set. Defaults to built-ins only.
func WithProfiles(set *profile.Set) Option {
	return func(p *Parser) {
		if set != nil {
			p.profiles = set
		}
	}
}

// WithBufferSize overrides the rolling buffer ceiling.
func WithBufferSize(size int) Option {
	return func(p *Parser) { p.buffer = capture.NewRollingBuffer(size) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the parser's logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// New creates a Parser with no tool detected.
func New(opts ...Option) *Parser {
	p := &Parser{
		profiles: profile.NewSet(nil),
		buffer:   capture.NewRollingBuffer(capture.DefaultSize),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNop(p.logger).WithComponent("parser")
	return p
}

// Parse consumes one chunk of raw output and returns the events it
// produced, in start, success, error, watch-ready order. It never fails:
// input that matches nothing yields no events.
func (p *Parser) Parse(chunk string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := ansi.Strip(p.complete(chunk))
	if text == "" {
		return nil
	}
	p.buffer.WriteString(text)

	if p.tool == nil {
		p.tool = p.profiles.Detect(p.buffer.String())
		if p.tool == nil {
			return nil
		}
		p.logger.Debug("build tool detected",
			"tool", p.tool.Name,
			"custom", p.tool.Custom)
	}

	now := p.now()
	var events []Event

	if p.tool.MatchStart(text) {
		p.pendingStart = now
		p.hasPending = true
		events = append(events, Event{Kind: EventStart, Tool: p.tool.Name, Timestamp: now})
	}
	if p.tool.MatchSuccess(text) {
		ev := Event{Kind: EventSuccess, Tool: p.tool.Name, Timestamp: now}
		ev.Duration, ev.HasDuration = p.resolveDuration(text, now)
		p.hasPending = false
		events = append(events, ev)
	}
	if p.tool.MatchError(text) {
		p.hasPending = false
		events = append(events, Event{Kind: EventError, Tool: p.tool.Name, Timestamp: now})
	}
	if p.tool.MatchWatchReady(text) {
		events = append(events, Event{Kind: EventWatchReady, Tool: p.tool.Name, Timestamp: now})
	}
	return events
}

// complete prepends any escape sequence left open by the previous chunk and
// holds back one left open at the end of this one, so sequences split at a
// read boundary are stripped whole.
func (p *Parser) complete(chunk string) string {
	data := p.carry + chunk
	p.carry = ""
	head, open := splitOpenSequence(data)
	if len(open) > maxCarry {
		return data
	}
	p.carry = open
	return head
}

// splitOpenSequence splits s before a trailing escape sequence that has not
// terminated yet.
func splitOpenSequence(s string) (head, open string) {
	for i := 0; i < len(s); {
		_, _, n, state := ansi.DecodeSequence(s[i:], ansi.NormalState, nil)
		if state != ansi.NormalState {
			return s[:i], s[i:]
		}
		if n <= 0 {
			break
		}
		i += n
	}
	return s, ""
}

// resolveDuration prefers a duration reported by the tool and falls back to
// time elapsed since the pending start.
func (p *Parser) resolveDuration(text string, now time.Time) (time.Duration, bool) {
	if d, ok := extractDuration(p.tool, text); ok {
		return d, true
	}
	if p.hasPending {
		return now.Sub(p.pendingStart), true
	}
	return 0, false
}

// extractDuration applies the profile's duration pattern. Captured values
// below secondsThreshold are taken as seconds, everything else as
// milliseconds.
func extractDuration(prof *profile.Profile, text string) (time.Duration, bool) {
	if prof.Duration == nil {
		return 0, false
	}
	m := prof.Duration.FindStringSubmatch(text)
	if len(m) < 2 || m[1] == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	ms := v
	if v < secondsThreshold {
		ms = math.Round(v * 1000)
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}

// Reset clears tool identity, buffer and pending start.
func (p *Parser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tool = nil
	p.hasPending = false
	p.pendingStart = time.Time{}
	p.carry = ""
	p.buffer.Reset()
}

// ClearBuffer empties the rolling buffer only. Tool identity and any
// pending start survive.
func (p *Parser) ClearBuffer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carry = ""
	p.buffer.Reset()
}

// DetectedTool returns the locked-in tool name, or "" and false.
func (p *Parser) DetectedTool() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tool == nil {
		return "", false
	}
	return p.tool.Name, true
}

// SetProfiles replaces the detection set. A tool that is already locked in
// is kept; the new set only applies to future detection.
func (p *Parser) SetProfiles(set *profile.Set) {
	if set == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = set
}

// BufferLen reports the number of bytes currently buffered.
func (p *Parser) BufferLen() int {
	return p.buffer.Len()
}

// Buffered returns a copy of the buffered output.
func (p *Parser) Buffered() string {
	return p.buffer.String()
}
