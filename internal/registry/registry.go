package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnknownSession is returned for a session ID that is not attached.
	ErrUnknownSession = errors.New("unknown session")
	// ErrTargetMismatch is returned when a session ID is registered again for a
	// different target.
	ErrTargetMismatch = errors.New("session already attached to another target")
)

// Session is one attached debugging target routed over the shared connection.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id"`
	AttachedAt time.Time `json:"attached_at"`
}

// RemoveFunc is called for every session leaving the registry, with the reason
// it left. It runs with the registry locked and must not call back into it.
type RemoveFunc func(s Session, reason error)

// Registry tracks the sessions attached on one connection. Session IDs are
// opaque; no relation between sessions is derived from them.
type Registry struct {
	logger   *zap.Logger
	onRemove RemoveFunc

	mu       sync.RWMutex
	sessions map[string]Session
}

// New creates an empty registry. onRemove may be nil.
func New(logger *zap.Logger, onRemove RemoveFunc) *Registry {
	return &Registry{
		logger:   logger.Named("registry"),
		onRemove: onRemove,
		sessions: make(map[string]Session),
	}
}

// Register records an attached session. Registering the same session for the
// same target again is a no-op that returns the existing record.
func (r *Registry) Register(sessionID, targetID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("register: empty session id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		if s.TargetID != targetID && targetID != "" {
			return s, fmt.Errorf("register %s for %s: %w (%s)", sessionID, targetID, ErrTargetMismatch, s.TargetID)
		}
		return s, nil
	}

	s := Session{ID: sessionID, TargetID: targetID, AttachedAt: time.Now()}
	r.sessions[sessionID] = s
	r.logger.Debug("session registered",
		zap.String("session_id", sessionID),
		zap.String("target_id", targetID))
	return s, nil
}

// Unregister removes a session and invalidates its subscriptions through the
// remove hook. It reports whether the session was known.
func (r *Registry) Unregister(sessionID string, reason error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	delete(r.sessions, sessionID)
	if r.onRemove != nil {
		r.onRemove(s, reason)
	}
	r.logger.Debug("session unregistered", zap.String("session_id", sessionID), zap.Error(reason))
	return true
}

// Clear removes every session at once and returns how many were removed.
func (r *Registry) Clear(reason error) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	if r.onRemove != nil {
		for _, s := range r.sessions {
			r.onRemove(s, reason)
		}
	}
	r.sessions = make(map[string]Session)
	return n
}

// IsKnown reports whether sessionID is attached.
func (r *Registry) IsKnown(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Get returns the session record for sessionID.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// WithSession runs fn while sessionID is guaranteed to stay registered. It
// returns ErrUnknownSession without calling fn if the session is not attached.
func (r *Registry) WithSession(sessionID string, fn func(Session) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return fn(s)
}

// List returns all sessions ordered by attach time.
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AttachedAt.Equal(out[j].AttachedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AttachedAt.Before(out[j].AttachedAt)
	})
	return out
}

// Len returns the number of attached sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
