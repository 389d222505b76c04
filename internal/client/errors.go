package client

import (
	"errors"
	"fmt"

	"github.com/amoylab/janus/internal/protocol"
	"github.com/amoylab/janus/internal/registry"
	"github.com/amoylab/janus/internal/router"
)

var (
	// ErrTimeout is returned by a call whose response did not arrive in time.
	ErrTimeout = errors.New("call timed out")
	// ErrConnectionLost fails every outstanding call when the connection drops.
	ErrConnectionLost = errors.New("connection lost")
	// ErrSessionInvalidated ends subscriptions whose session went away.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrUnsubscribed ends a subscription its owner closed.
	ErrUnsubscribed = router.ErrUnsubscribed
	// ErrUnknownSession is returned for a session that is not attached.
	ErrUnknownSession = registry.ErrUnknownSession

	ErrAlreadyConnected = errors.New("client already connected")
	ErrClosed           = errors.New("client closed")
	ErrNotReady         = errors.New("client not ready")
)

// RemoteError is the error a remote endpoint returned for a call.
type RemoteError = protocol.RemoteError

// errDetached ends the subscriptions of a detached session.
var errDetached = fmt.Errorf("%w: detached from target", ErrSessionInvalidated)

// Error is a connect or disconnect level failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("client %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// lostErrors returns the error delivered to pending calls and the end reason of
// subscriptions when a connection goes away because of cause.
func lostErrors(cause error) (callErr, streamErr error) {
	callErr = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	streamErr = fmt.Errorf("%w: %w", ErrSessionInvalidated, callErr)
	return callErr, streamErr
}
