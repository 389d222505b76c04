// Package domain provides typed wrappers for the protocol domains janus uses.
// Every wrapper is a thin layer over Conn: it builds params, issues one call
// and decodes the result.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amoylab/janus/internal/router"
)

// Conn is the part of client.Client the domain wrappers need.
type Conn interface {
	Call(ctx context.Context, sessionID, method string, params any, timeout time.Duration) (json.RawMessage, error)
	Subscribe(ctx context.Context, sessionID, pattern string) (*router.Subscription, error)
}

type base struct {
	conn    Conn
	session string
	name    string
}

// SessionID returns the session the wrapper talks to, empty for the browser.
func (b base) SessionID() string {
	return b.session
}

// Events streams every event of the domain until ctx is done.
func (b base) Events(ctx context.Context) (*router.Subscription, error) {
	return b.conn.Subscribe(ctx, b.session, b.name+".*")
}

func (b base) method(name string) string {
	return b.name + "." + name
}

func (b base) exec(ctx context.Context, name string, params any) error {
	_, err := b.conn.Call(ctx, b.session, b.method(name), params, 0)
	return err
}

func (b base) raw(ctx context.Context, name string, params any) (json.RawMessage, error) {
	return b.conn.Call(ctx, b.session, b.method(name), params, 0)
}

func call[T any](ctx context.Context, b base, name string, params any) (T, error) {
	var out T
	raw, err := b.raw(ctx, name, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode result: %w", b.method(name), err)
	}
	return out, nil
}
