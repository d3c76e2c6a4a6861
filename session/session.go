// Package session tracks the cancellation scope of each upload being processed.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCancelled is the cause attached to every context aborted by Session.Cancel.
var ErrCancelled = errors.New("session cancelled")

// Session is the cancellation scope of one upload-to-download cycle.
//
// Lifecycle: active -> cancelled (terminal), or active -> finished (evicted from the registry).
// All LLM requests of the session run under Context(), so one cancel aborts all of them.
type Session struct {
	ID        string
	StartTime time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	cancelled bool
	inFlight  int
}

func newSession(parent context.Context, id string) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		ID:        id,
		StartTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context is cancelled with ErrCancelled when the session is cancelled.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// InFlight returns the number of requests currently between Begin and release.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Begin marks the start of one network request. It fails with ErrCancelled once the
// session is cancelled, so no request starts after a cancel. The returned release
// must be called exactly once when the request settles.
func (s *Session) Begin() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return nil, ErrCancelled
	}
	s.inFlight++
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
		})
	}, nil
}

// Cancel marks the session cancelled and aborts every in-flight request. It returns
// how many requests were in flight; a second call returns 0.
func (s *Session) Cancel() int {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return 0
	}
	s.cancelled = true
	n := s.inFlight
	s.mu.Unlock()

	s.cancel(ErrCancelled)
	return n
}

// release frees the session context once the session leaves the registry.
func (s *Session) release() {
	s.cancel(context.Canceled)
}
