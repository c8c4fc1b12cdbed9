package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirbytools/buildwatch/internal/transport"
)

// fakeSession is a transport.Session driven by the test.
type fakeSession struct {
	pid        int
	msgs       chan transport.Message
	done       chan struct{}
	once       sync.Once
	terminated atomic.Bool
}

func newFakeSession(pid int) *fakeSession {
	return &fakeSession{
		pid:  pid,
		msgs: make(chan transport.Message, 64),
		done: make(chan struct{}),
	}
}

func (f *fakeSession) Messages() <-chan transport.Message { return f.msgs }
func (f *fakeSession) Done() <-chan struct{}              { return f.done }
func (f *fakeSession) PID() int                           { return f.pid }

func (f *fakeSession) Terminate(context.Context) error {
	f.terminated.Store(true)
	return nil
}

func (f *fakeSession) emit(chunks ...string) {
	for _, c := range chunks {
		f.msgs <- transport.Message{Kind: transport.MessageOutput, Data: c}
	}
}

// exit simulates the process closing on its own.
func (f *fakeSession) exit(code int) {
	f.once.Do(func() {
		f.msgs <- transport.Message{Kind: transport.MessageExit, ExitCode: code, HasCode: true}
		close(f.msgs)
		close(f.done)
	})
}

func (f *fakeSession) close() {
	f.once.Do(func() {
		close(f.msgs)
		close(f.done)
	})
}

// fakeTransport hands out fakeSessions and records spawn requests.
type fakeTransport struct {
	name       string
	structured bool
	err        error

	mu       sync.Mutex
	specs    []transport.Spec
	sessions []*fakeSession
}

func (f *fakeTransport) Name() string     { return f.name }
func (f *fakeTransport) Structured() bool { return f.structured }

func (f *fakeTransport) Spawn(_ context.Context, spec transport.Spec) (transport.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeSession(1000 + len(f.sessions))
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeTransport) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// attempts counts Spawn calls, failed ones included.
func (f *fakeTransport) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.specs)
}

func (f *fakeTransport) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		s.close()
	}
}

// fakePresenter records Write and Show calls.
type fakePresenter struct {
	mu     sync.Mutex
	output []byte
	shows  []string
}

func (p *fakePresenter) Write(_ string, b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = append(p.output, b...)
}

func (p *fakePresenter) Show(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shows = append(p.shows, label)
}

func (p *fakePresenter) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.output)
}

type harness struct {
	sup       *Supervisor
	pty       *fakeTransport
	pipe      *fakeTransport
	presenter *fakePresenter
	changes   chan StateChange
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		pty:       &fakeTransport{name: transport.NamePTY, structured: true},
		pipe:      &fakeTransport{name: transport.NamePipe},
		presenter: &fakePresenter{},
		changes:   make(chan StateChange, 128),
	}
	opts := DefaultOptions()
	opts.FallbackDelay = time.Hour
	opts.RestartGrace = 10 * time.Millisecond
	opts.Preferred = h.pty
	opts.Fallback = h.pipe
	opts.Presenter = h.presenter
	if mutate != nil {
		mutate(&opts)
	}

	sup, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.sup = sup
	if _, err := sup.OnStateChange(func(c StateChange) { h.changes <- c }); err != nil {
		t.Fatalf("OnStateChange: %v", err)
	}

	t.Cleanup(func() {
		_ = sup.Dispose()
		h.pty.closeAll()
		h.pipe.closeAll()
	})
	return h
}

func (h *harness) start(t *testing.T) *fakeSession {
	t.Helper()
	if err := h.sup.Start(context.Background(), Request{Command: "npm run dev", Dir: "/srv/site", Label: "Build"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h.pty.last()
}

// expect reads the next transitions and checks their target phases.
func (h *harness) expect(t *testing.T, phases ...Phase) {
	t.Helper()
	for i, want := range phases {
		select {
		case c := <-h.changes:
			if c.New != want {
				t.Fatalf("transition %d: got %s -> %s, want -> %s", i, c.Old, c.New, want)
			}
			if c.Old == c.New {
				t.Fatalf("transition %d: no-op transition %s delivered", i, c.New)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for transition %d to %s (state %s)", i, want, h.sup.State())
		}
	}
}

// expectQuiet asserts no transition is delivered within d.
func (h *harness) expectQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-h.changes:
		t.Fatalf("unexpected transition %s -> %s", c.Old, c.New)
	case <-time.After(d):
	}
}

// eventually polls cond until it holds.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
