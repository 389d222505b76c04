package router

import (
	"sync"
	"sync/atomic"

	"github.com/amoylab/janus/internal/protocol"
)

// Subscription is a stream of events for one scope and pattern. It holds no
// reference to the connection, only to the router it is registered with.
type Subscription struct {
	id      uint64
	router  *Router
	scope   string
	pattern Pattern
	ch      chan protocol.Event
	dropped atomic.Uint64

	// ended, onEnd and the channel close are guarded by the router lock
	ended bool
	onEnd []func()

	errMu sync.Mutex
	err   error
}

// Events returns the delivery channel. It is closed when the subscription
// ends; Err then reports why.
func (s *Subscription) Events() <-chan protocol.Event {
	return s.ch
}

// Err returns the end reason, or nil while the subscription is live.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Scope returns the session ID the subscription is bound to, or Global.
func (s *Subscription) Scope() string { return s.scope }

// Pattern returns the pattern the subscription was created with.
func (s *Subscription) Pattern() string { return s.pattern.String() }

// Unsubscribe removes the subscription and closes its channel. It is safe to
// call more than once and after invalidation.
func (s *Subscription) Unsubscribe() {
	s.router.remove(s)
}

// OnEnd registers f to run once the subscription ends, however it ends. f
// runs immediately when it already has. f is called with the router locked
// and must neither block nor use the router.
func (s *Subscription) OnEnd(f func()) {
	s.router.mu.Lock()
	defer s.router.mu.Unlock()
	if s.ended {
		f()
		return
	}
	s.onEnd = append(s.onEnd, f)
}

// offer enqueues evt, discarding the oldest buffered event when the buffer is
// full. It reports whether an event was dropped. Called with the router lock.
func (s *Subscription) offer(evt protocol.Event) bool {
	select {
	case s.ch <- evt:
		return false
	default:
	}
	dropped := false
	select {
	case <-s.ch:
		dropped = true
	default:
	}
	// the router lock makes this the only sender, so there is room now
	s.ch <- evt
	if dropped {
		s.dropped.Add(1)
	}
	return dropped
}

// end records reason and closes the channel. Called with the router lock.
func (s *Subscription) end(reason error) {
	if s.ended {
		return
	}
	s.ended = true
	s.errMu.Lock()
	s.err = reason
	s.errMu.Unlock()
	close(s.ch)
	for _, f := range s.onEnd {
		f()
	}
	s.onEnd = nil
}
