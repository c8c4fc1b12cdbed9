package supervisor

import "sync"

var (
	sharedMu sync.Mutex
	shared   *Supervisor
)

// Shared returns the process-wide Supervisor, creating it with opts on
// first use. opts is ignored while an instance exists. Disposing the shared
// instance releases it so the next call creates a fresh one.
func Shared(opts Options) (*Supervisor, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return shared, nil
	}
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	shared = s
	return s, nil
}

func releaseShared(s *Supervisor) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == s {
		shared = nil
	}
}
