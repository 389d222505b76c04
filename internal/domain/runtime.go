package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// RemoteObject is a mirror of a JavaScript value.
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
}

// ExceptionDetails describes an exception thrown during evaluation.
type ExceptionDetails struct {
	ExceptionID  int64         `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int64         `json:"lineNumber"`
	ColumnNumber int64         `json:"columnNumber"`
	URL          string        `json:"url,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

// Error reports the exception as an error.
func (e *ExceptionDetails) Error() string {
	if e.Exception != nil && e.Exception.Description != "" {
		return fmt.Sprintf("evaluation threw: %s", e.Exception.Description)
	}
	return fmt.Sprintf("evaluation threw: %s (%d:%d)", e.Text, e.LineNumber, e.ColumnNumber)
}

// Runtime wraps script evaluation in one session.
type Runtime struct {
	base
}

func NewRuntime(conn Conn, sessionID string) *Runtime {
	return &Runtime{base{conn: conn, session: sessionID, name: "Runtime"}}
}

func (r *Runtime) Enable(ctx context.Context) error {
	return r.exec(ctx, "enable", nil)
}

// Evaluate runs expression in the page. A thrown exception is returned as
// *ExceptionDetails.
func (r *Runtime) Evaluate(ctx context.Context, expression string, returnByValue bool) (RemoteObject, error) {
	res, err := call[struct {
		Result           RemoteObject      `json:"result"`
		ExceptionDetails *ExceptionDetails `json:"exceptionDetails"`
	}](ctx, r.base, "evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": returnByValue,
	})
	if err != nil {
		return RemoteObject{}, err
	}
	if res.ExceptionDetails != nil {
		return res.Result, res.ExceptionDetails
	}
	return res.Result, nil
}
