package pipeline

import (
	"context"
	"sync"
)

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Sessions serializes runs per session. Starting a run for a session that
// already has one cancels the older run and waits for it to unwind, so at
// most one run writes a session's checkpoint at any time.
type Sessions struct {
	mu   sync.Mutex
	runs map[SessionKey]*activeRun
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{runs: make(map[SessionKey]*activeRun)}
}

// Run executes fn under a context that a later Run or Cancel for the same key
// cancels. It blocks until fn returns.
func (s *Sessions) Run(ctx context.Context, key SessionKey, fn func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := &activeRun{cancel: cancel, done: make(chan struct{})}

	for {
		s.mu.Lock()
		previous, busy := s.runs[key]
		if !busy {
			s.runs[key] = run
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		previous.cancel()
		select {
		case <-previous.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	defer func() {
		s.mu.Lock()
		if s.runs[key] == run {
			delete(s.runs, key)
		}
		s.mu.Unlock()
		close(run.done)
	}()
	return fn(runCtx)
}

// Cancel stops the active run for key and reports whether one existed.
func (s *Sessions) Cancel(key SessionKey) bool {
	s.mu.Lock()
	run, ok := s.runs[key]
	s.mu.Unlock()
	if ok {
		run.cancel()
	}
	return ok
}

// Active reports whether key has a run in flight.
func (s *Sessions) Active(key SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[key]
	return ok
}
