package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformed marks an inbound frame that is neither a Response nor an Event.
var ErrMalformed = errors.New("protocol: malformed frame")

// CodecError describes why a frame could not be classified.
type CodecError struct {
	Reason string
	Frame  []byte
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformed, e.Reason)
}

func (e *CodecError) Unwrap() error { return ErrMalformed }

func malformed(frame []byte, format string, args ...any) error {
	return &CodecError{Reason: fmt.Sprintf(format, args...), Frame: frame}
}

// Decode classifies an inbound frame. A frame with an id is a Response, a frame
// with a method and no id is an Event.
func Decode(frame []byte) (Inbound, error) {
	if !gjson.ValidBytes(frame) {
		return nil, malformed(frame, "invalid json")
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return nil, malformed(frame, "not an object")
	}

	fields := gjson.GetManyBytes(frame, "id", "method", "params", "sessionId", "result", "error")
	id, method, params, sessionID, result, errObj := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

	if sessionID.Exists() && sessionID.Type != gjson.String {
		return nil, malformed(frame, "sessionId is not a string")
	}

	if id.Exists() {
		if id.Type != gjson.Number || id.Num != float64(int64(id.Num)) {
			return nil, malformed(frame, "id is not an integer")
		}
		resp := &Response{ID: id.Int(), SessionID: sessionID.Str}
		switch {
		case errObj.Exists():
			if !errObj.IsObject() {
				return nil, malformed(frame, "error is not an object")
			}
			remote := &RemoteError{
				Code:    errObj.Get("code").Int(),
				Message: errObj.Get("message").String(),
			}
			if data := errObj.Get("data"); data.Exists() {
				remote.Data = rawOf(data)
			}
			resp.Error = remote
		case result.Exists():
			resp.Result = rawOf(result)
		default:
			return nil, malformed(frame, "response %d has neither result nor error", resp.ID)
		}
		return resp, nil
	}

	if method.Type != gjson.String || method.Str == "" {
		return nil, malformed(frame, "neither id nor method present")
	}
	evt := &Event{Method: method.Str, SessionID: sessionID.Str}
	if params.Exists() {
		evt.Params = rawOf(params)
	}
	return evt, nil
}

func rawOf(r gjson.Result) json.RawMessage {
	return json.RawMessage(r.Raw)
}

// Encode serializes an outbound Request.
func Encode(req Request) ([]byte, error) {
	if req.Method == "" {
		return nil, errors.New("protocol: request without method")
	}
	if len(req.Params) > 0 && !json.Valid(req.Params) {
		return nil, fmt.Errorf("protocol: params of %s are not valid json", req.Method)
	}
	return json.Marshal(req)
}

// MarshalParams converts caller-supplied params into raw JSON. nil stays nil
// and already encoded values are passed through.
func MarshalParams(params any) (json.RawMessage, error) {
	switch v := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal params: %w", err)
		}
		if string(b) == "null" {
			return nil, nil
		}
		return b, nil
	}
}
