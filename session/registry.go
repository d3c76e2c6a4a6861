package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/charmbracelet/log"
)

const DefaultTTL = 30 * time.Minute

var ErrSessionActive = errors.New("session id already in use")

// Registry maps client-supplied session ids to live sessions. Finished sessions are
// removed by Finish; sessions abandoned without Finish expire after the TTL.
type Registry struct {
	mu       sync.Mutex
	sessions *ttlworker.Cache[string, *Session]
	ids      map[string]struct{}
	logger   *log.Logger
}

// NewRegistry creates an empty registry. A ttl <= 0 selects DefaultTTL.
func NewRegistry(ttl time.Duration, logger *log.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		sessions: ttlworker.NewCache[string, *Session](ttl),
		ids:      make(map[string]struct{}),
		logger:   logger,
	}
}

// Start registers a new active session under id. It fails with ErrSessionActive while
// another session holds the id; the id becomes free again once that session finishes
// or expires.
func (r *Registry) Start(parent context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.sessions.Get(id); prev != nil {
		r.logger.Warnf("[Session] Rejected duplicate session id: %s", id)
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, id)
	}
	s := newSession(parent, id)
	r.sessions.Set(id, s)
	r.ids[id] = struct{}{}
	r.logger.Debugf("[Session] Started session: %s", id)
	return s, nil
}

// Get returns the active session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions.Get(id)
	if s == nil {
		delete(r.ids, id)
		return nil, false
	}
	return s, true
}

// Cancel cancels the session registered under id and returns how many in-flight
// requests were aborted. ok is false when no such session exists.
func (r *Registry) Cancel(id string) (aborted int, ok bool) {
	s, ok := r.Get(id)
	if !ok {
		return 0, false
	}
	aborted = s.Cancel()
	r.logger.Infof("[Session] Cancelled session %s, aborted %d in-flight request(s)", id, aborted)
	return aborted, true
}

// Finish evicts s if it is still the session registered under its id.
func (r *Registry) Finish(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.sessions.Get(s.ID); cur == s {
		r.sessions.Delete(s.ID)
		delete(r.ids, s.ID)
	}
	s.release()
	r.logger.Debugf("[Session] Finished session: %s", s.ID)
}

// Active returns the ids of sessions still registered.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		if r.sessions.Get(id) == nil {
			delete(r.ids, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
