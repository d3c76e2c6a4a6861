// Package notify fans progress events out to the clients watching a session.
package notify

import (
	"sync"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

// SubscriberBuffer is the per-subscriber queue length. A subscriber that falls behind
// loses its oldest queued event, never the newest.
const SubscriberBuffer = 16

type subscriber chan types.Progress

// Hub holds the subscribers of every session and broadcasts progress to them.
// Events below a session's high-water percent are dropped, so each subscriber sees
// a non-decreasing percent sequence. There is no replay for late subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[subscriber]struct{}
	high map[string]int
}

// New creates a new notify hub.
func New() *Hub {
	return &Hub{
		subs: make(map[string]map[subscriber]struct{}),
		high: make(map[string]int),
	}
}

// Subscribe registers a subscriber for sessionId. The channel is closed after the
// session's final event or when cancel is called.
func (h *Hub) Subscribe(sessionId string) (<-chan types.Progress, func()) {
	ch := make(subscriber, SubscriberBuffer)
	h.mu.Lock()
	set, ok := h.subs[sessionId]
	if !ok {
		set = make(map[subscriber]struct{})
		h.subs[sessionId] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unregister(sessionId, ch) })
	}
}

func (h *Hub) unregister(sessionId string, ch subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionId]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, sessionId)
	}
}

// Publish delivers p to every subscriber of p.SessionId. It reports whether the
// event was accepted, i.e. not below the session's high-water percent.
func (h *Hub) Publish(p types.Progress) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if last, ok := h.high[p.SessionId]; ok && p.Percent < last {
		return false
	}
	h.high[p.SessionId] = p.Percent
	for ch := range h.subs[p.SessionId] {
		deliver(ch, p)
	}
	return true
}

// Finish publishes the final event of a session, closes its subscribers and forgets
// its high-water mark.
func (h *Hub) Finish(p types.Progress) {
	p.Done = true
	h.mu.Lock()
	defer h.mu.Unlock()
	if last := h.high[p.SessionId]; p.Percent < last {
		p.Percent = last
	}
	for ch := range h.subs[p.SessionId] {
		deliver(ch, p)
		close(ch)
	}
	delete(h.subs, p.SessionId)
	delete(h.high, p.SessionId)
}

// Subscribers returns the number of subscribers watching sessionId.
func (h *Hub) Subscribers(sessionId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionId])
}

// deliver never blocks; must be called with h.mu held.
func deliver(ch subscriber, p types.Progress) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
