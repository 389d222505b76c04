package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is an outbound command. SessionID is set only for session-scoped
// traffic in flattened mode.
type Request struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Response answers exactly one Request. Either Result or Error is set.
type Response struct {
	ID        int64
	Result    json.RawMessage
	Error     *RemoteError
	SessionID string
}

// Event is an unsolicited notification from the remote endpoint.
type Event struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Domain returns the part of the method name before the first dot.
func (e Event) Domain() string {
	return DomainOf(e.Method)
}

// DomainOf returns the domain of a "Domain.method" name. A name without a dot
// is its own domain.
func DomainOf(method string) string {
	if i := strings.IndexByte(method, '.'); i >= 0 {
		return method[:i]
	}
	return method
}

// Inbound is either a *Response or an *Event.
type Inbound interface {
	inbound()
}

func (*Response) inbound() {}
func (*Event) inbound()    {}

// RemoteError is the error object of a Response.
type RemoteError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("remote error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}
