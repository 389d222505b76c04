package router

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/protocol"
)

// Global is the scope of subscriptions that are not bound to a session. They
// see browser-level events as well as the events of every session.
const Global = ""

// ErrUnsubscribed is the end reason of a subscription closed by its owner.
var ErrUnsubscribed = errors.New("unsubscribed")

// DefaultBuffer is the per-subscription buffer used when none is given.
const DefaultBuffer = 64

// Observer receives delivery counts, e.g. for metrics.
type Observer interface {
	EventDispatched(domain string)
	EventDropped(domain string)
}

// Stats is a snapshot of router counters.
type Stats struct {
	Subscriptions int    `json:"subscriptions"`
	Dispatched    uint64 `json:"dispatched"`
	Dropped       uint64 `json:"dropped"`
}

// Router fans inbound events out to subscriptions. Every subscription has its
// own bounded buffer; when it is full the oldest unread event is dropped so a
// slow consumer never stalls the others.
type Router struct {
	logger   *zap.Logger
	observer Observer

	mu     sync.Mutex
	subs   []*Subscription
	nextID uint64

	dispatched atomic.Uint64
	dropped    atomic.Uint64
}

// New creates a router. observer may be nil.
func New(logger *zap.Logger, observer Observer) *Router {
	return &Router{
		logger:   logger.Named("router"),
		observer: observer,
	}
}

// Subscribe registers a subscription for events in scope whose method matches
// pattern. scope is a session ID or Global.
func (r *Router) Subscribe(scope, pattern string, buffer int) (*Subscription, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	if buffer < 1 {
		buffer = DefaultBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &Subscription{
		id:      r.nextID,
		router:  r,
		scope:   scope,
		pattern: p,
		ch:      make(chan protocol.Event, buffer),
	}
	r.subs = append(r.subs, sub)
	r.logger.Debug("subscription added",
		zap.Uint64("id", sub.id),
		zap.String("scope", scope),
		zap.String("pattern", pattern))
	return sub, nil
}

// Dispatch delivers evt to every matching subscription in registration order
// and returns the number of subscriptions it was delivered to. It never blocks.
func (r *Router) Dispatch(evt protocol.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	domain := evt.Domain()
	delivered := 0
	for _, sub := range r.subs {
		if sub.scope != Global && sub.scope != evt.SessionID {
			continue
		}
		if !sub.pattern.Match(evt.Method) {
			continue
		}
		if sub.offer(evt) {
			r.dropped.Add(1)
			if r.observer != nil {
				r.observer.EventDropped(domain)
			}
		}
		delivered++
	}
	if delivered > 0 {
		r.dispatched.Add(1)
		if r.observer != nil {
			r.observer.EventDispatched(domain)
		}
	}
	return delivered
}

// InvalidateSession ends every subscription scoped to sessionID with reason.
func (r *Router) InvalidateSession(sessionID string, reason error) int {
	if sessionID == Global {
		return 0
	}
	return r.invalidate(func(s *Subscription) bool { return s.scope == sessionID }, reason)
}

// InvalidateAll ends every subscription with reason.
func (r *Router) InvalidateAll(reason error) int {
	return r.invalidate(func(*Subscription) bool { return true }, reason)
}

func (r *Router) invalidate(match func(*Subscription) bool, reason error) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.subs[:0]
	n := 0
	for _, sub := range r.subs {
		if match(sub) {
			sub.end(reason)
			n++
			continue
		}
		kept = append(kept, sub)
	}
	clear(r.subs[len(kept):])
	r.subs = kept
	if n > 0 {
		r.logger.Debug("subscriptions invalidated", zap.Int("count", n), zap.Error(reason))
	}
	return n
}

func (r *Router) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s == sub {
			r.subs = slices.Delete(r.subs, i, i+1)
			sub.end(ErrUnsubscribed)
			return
		}
	}
}

// Len returns the number of live subscriptions.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Stats returns the current counters.
func (r *Router) Stats() Stats {
	return Stats{
		Subscriptions: r.Len(),
		Dispatched:    r.dispatched.Load(),
		Dropped:       r.dropped.Load(),
	}
}
