package tap

import (
	"errors"
	"time"
)

// Kind classifies a diagnostic record.
type Kind string

const (
	// KindUnknownSession is an inbound message naming a session that is not
	// attached, typically an event racing a detach.
	KindUnknownSession Kind = "unknown_session"
	// KindMalformedFrame is a frame the codec could not classify.
	KindMalformedFrame Kind = "malformed_frame"
	// KindOrphanResponse is a response whose id has no pending request.
	KindOrphanResponse Kind = "orphan_response"
)

// Diagnostic describes inbound traffic that could not be routed.
type Diagnostic struct {
	Kind         Kind      `json:"kind"`
	ConnectionID string    `json:"connection_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Method       string    `json:"method,omitempty"`
	RequestID    int64     `json:"request_id,omitempty"`
	Payload      string    `json:"payload,omitempty"`
	Err          string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// Sink receives diagnostics. Record is called on the connection reader and
// must not block.
type Sink interface {
	Record(d Diagnostic)
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Diagnostic) {}

// Composite fans records out to several sinks.
type Composite struct {
	sinks  []Sink
	memory *MemorySink
}

// NewComposite combines sinks. The first *MemorySink among them is what
// Memory returns.
func NewComposite(sinks ...Sink) *Composite {
	c := &Composite{}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if m, ok := s.(*MemorySink); ok && c.memory == nil {
			c.memory = m
		}
		c.sinks = append(c.sinks, s)
	}
	return c
}

// Record implements Sink.Record
func (c *Composite) Record(d Diagnostic) {
	for _, s := range c.sinks {
		s.Record(d)
	}
}

// Memory returns the in-memory sink, or nil when none is configured.
func (c *Composite) Memory() *MemorySink {
	return c.memory
}

// Close closes every sink that holds resources.
func (c *Composite) Close() error {
	var errs []error
	for _, s := range c.sinks {
		if cl, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}
