package correlation

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result is the single fulfillment of a pending request.
type Result struct {
	Value json.RawMessage
	Err   error
}

// Hook runs on the resolving goroutine after the entry left the table and
// before the waiter is released. It may replace the result.
type Hook func(Result) Result

// Pending is a snapshot of an outstanding request.
type Pending struct {
	ID        int64
	SessionID string
	Method    string
	IssuedAt  time.Time
}

type entry struct {
	Pending
	waiter chan Result
	hook   Hook
}

// Table maps request IDs to their waiters. IDs are minted only by Allocate and
// are never reused for the lifetime of a Table.
type Table struct {
	logger *zap.Logger

	mu      sync.Mutex
	nextID  int64
	entries map[int64]*entry
}

// NewTable creates an empty table whose first ID is 1.
func NewTable(logger *zap.Logger) *Table {
	return &Table{
		logger:  logger.Named("correlation"),
		entries: make(map[int64]*entry),
	}
}

// Allocate mints the next request ID and registers a waiter for it.
func (t *Table) Allocate(sessionID, method string) (int64, <-chan Result) {
	return t.AllocateWithHook(sessionID, method, nil)
}

// AllocateWithHook is Allocate with a hook invoked when the request resolves.
func (t *Table) AllocateWithHook(sessionID, method string, hook Hook) (int64, <-chan Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	e := &entry{
		Pending: Pending{
			ID:        t.nextID,
			SessionID: sessionID,
			Method:    method,
			IssuedAt:  time.Now(),
		},
		waiter: make(chan Result, 1),
		hook:   hook,
	}
	t.entries[e.ID] = e
	return e.ID, e.waiter
}

// Resolve delivers a successful result. It reports whether id was pending.
func (t *Table) Resolve(id int64, value json.RawMessage) bool {
	return t.fulfill(id, Result{Value: value})
}

// Fail delivers an error. It reports whether id was pending.
func (t *Table) Fail(id int64, err error) bool {
	return t.fulfill(id, Result{Err: err})
}

func (t *Table) fulfill(id int64, res Result) bool {
	e := t.take(id)
	if e == nil {
		t.logger.Debug("no pending request for id", zap.Int64("id", id))
		return false
	}
	if e.hook != nil {
		res = e.hook(res)
	}
	e.waiter <- res
	return true
}

// Remove drops id without delivering anything to its waiter. It is the path
// for timeouts and cancelled callers and reports whether id was pending.
func (t *Table) Remove(id int64) bool {
	return t.take(id) != nil
}

func (t *Table) take(id int64) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return e
}

// AbandonAll fails every outstanding request with err and empties the table.
// Hooks are skipped. It returns the number of requests failed.
func (t *Table) AbandonAll(err error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[int64]*entry)
	t.mu.Unlock()

	for _, e := range entries {
		e.waiter <- Result{Err: err}
	}
	if len(entries) > 0 {
		t.logger.Debug("abandoned pending requests", zap.Int("count", len(entries)), zap.Error(err))
	}
	return len(entries)
}

// Len returns the number of outstanding requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Contains reports whether id is outstanding.
func (t *Table) Contains(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// Pending returns the outstanding requests ordered by ID.
func (t *Table) Pending() []Pending {
	t.mu.Lock()
	out := make([]Pending, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Pending)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
