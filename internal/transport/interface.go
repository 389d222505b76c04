package transport

import (
	"context"
	"errors"
	"fmt"
)

// State is the lifecycle state of one physical connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotConnected is returned by Send and Receive once the transport is closed
// or before it was connected.
var ErrNotConnected = errors.New("transport: not connected")

// Error reports an I/O, TLS or handshake failure of the underlying connection.
type Error struct {
	Op  string // "dial", "read", "write", "close"
	URL string
	Err error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Interface is a single message-oriented connection to a debugging endpoint.
type Interface interface {
	// Connect dials url. Connect should only be called once per instance.
	Connect(ctx context.Context, url string) error

	// Send writes one text frame. Concurrent calls never interleave frames.
	Send(ctx context.Context, frame []byte) error

	// Receive blocks for the next inbound text frame. It returns io.EOF when the
	// remote closed cleanly, ErrNotConnected after Close, or an *Error.
	// Receive must only be called from one goroutine.
	Receive(ctx context.Context) ([]byte, error)

	// Close terminates the connection. It is safe to call more than once.
	Close() error

	// State reports the current connection state.
	State() State
}

// Factory creates a fresh, unconnected transport.
type Factory func() Interface
