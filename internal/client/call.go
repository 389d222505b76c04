package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/correlation"
	"github.com/amoylab/janus/internal/protocol"
	"github.com/amoylab/janus/pkg/metrics"
)

// Call sends method with params and waits for its response. An empty
// sessionID addresses the browser itself; otherwise the session must be
// attached. A timeout <= 0 uses the client default. Call returns the raw
// result, or an error matching ErrTimeout, ErrConnectionLost, ErrUnknownSession
// or a *RemoteError.
func (c *Client) Call(ctx context.Context, sessionID, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return c.call(ctx, sessionID, method, params, timeout, nil)
}

// call is Call with an optional hook run on the reader before the result is
// handed back. hook receives the connection the request was sent on.
func (c *Client) call(ctx context.Context, sessionID, method string, params any, timeout time.Duration,
	hook func(*connection) correlation.Hook) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.callTimeout
	}
	raw, err := protocol.MarshalParams(params)
	if err != nil {
		return nil, err
	}
	conn, err := c.readyConn()
	if err != nil {
		return nil, err
	}
	if sessionID != "" && !conn.sessions.IsKnown(sessionID) {
		return nil, fmt.Errorf("%s: %w: %s", method, ErrUnknownSession, sessionID)
	}

	scope := c.tracer.Start(ctx, cnst.SpanCallPrefix+method).WithAttrs(
		attribute.String(cnst.AttrMethod, method),
		attribute.String(cnst.AttrSessionID, sessionID),
		attribute.String(cnst.AttrConnectionID, conn.id),
	)
	defer scope.End()

	start := time.Now()
	status := metrics.StatusOK
	c.metrics.CallStart(method)
	defer func() { c.metrics.CallDone(method, status, start) }()

	var h correlation.Hook
	if hook != nil {
		h = hook(conn)
	}
	id, waiter := conn.table.AllocateWithHook(sessionID, method, h)
	scope.WithAttrs(attribute.Int64(cnst.AttrRequestID, id))

	result, err := c.roundTrip(ctx, conn, id, waiter, protocol.Request{
		ID:        id,
		Method:    method,
		Params:    raw,
		SessionID: sessionID,
	}, timeout)
	if err != nil {
		status = statusOf(err)
		scope.Fail(err, attribute.String(cnst.AttrErrorReason, status))
		var remote *RemoteError
		if errors.As(err, &remote) {
			scope.WithAttrs(attribute.Int64(cnst.AttrRemoteCode, remote.Code))
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) roundTrip(ctx context.Context, conn *connection, id int64, waiter <-chan correlation.Result,
	req protocol.Request, timeout time.Duration) (json.RawMessage, error) {
	frame, err := protocol.Encode(req)
	if err != nil {
		conn.table.Remove(id)
		return nil, err
	}
	if err := conn.tr.Send(ctx, frame); err != nil {
		if conn.table.Remove(id) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		// the connection was torn down concurrently and already failed us
		return unwrap(<-waiter)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-waiter:
		return unwrap(res)
	case <-timer.C:
		if conn.table.Remove(id) {
			c.logger.Debug("call timed out",
				zap.String("method", req.Method),
				zap.Int64("id", id),
				zap.Duration("timeout", timeout))
			return nil, fmt.Errorf("%s: %w after %s", req.Method, ErrTimeout, timeout)
		}
	case <-ctx.Done():
		if conn.table.Remove(id) {
			return nil, ctx.Err()
		}
	}
	// lost the race against fulfillment, which is already on its way
	return unwrap(<-waiter)
}

func unwrap(res correlation.Result) (json.RawMessage, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value, nil
}

func statusOf(err error) string {
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		return metrics.StatusRemoteError
	case errors.Is(err, ErrTimeout):
		return metrics.StatusTimeout
	case errors.Is(err, ErrConnectionLost):
		return metrics.StatusConnectionLost
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.StatusCanceled
	default:
		return metrics.StatusError
	}
}

// Attach attaches to targetID in flattened mode and returns the new session
// ID. The session is registered on the reader before any later frame is
// processed, so events racing the response are routed to it.
//
// A session ID the browser reports that is already attached to another target
// fails with ErrTargetMismatch. Nothing is detached then: the ID still names
// the registered session, which stays usable.
func (c *Client) Attach(ctx context.Context, targetID string) (string, error) {
	scope := c.tracer.Start(ctx, cnst.SpanAttach).WithAttrs(attribute.String(cnst.AttrTargetID, targetID))
	defer scope.End()

	params := map[string]any{"targetId": targetID, "flatten": true}
	result, err := c.call(scope.Ctx, "", cnst.MethodAttachToTarget, params, 0, func(conn *connection) correlation.Hook {
		return func(res correlation.Result) correlation.Result {
			if res.Err != nil {
				return res
			}
			sid := gjson.GetBytes(res.Value, "sessionId")
			if sid.Type != gjson.String || sid.Str == "" {
				return correlation.Result{Err: fmt.Errorf("%s: %w: response without sessionId", cnst.MethodAttachToTarget, protocol.ErrMalformed)}
			}
			if _, err := conn.sessions.Register(sid.Str, targetID); err != nil {
				return correlation.Result{Err: err}
			}
			c.metrics.SetSessions(conn.sessions.Len())
			return res
		}
	})
	if err != nil {
		scope.Fail(err)
		return "", err
	}
	sessionID := gjson.GetBytes(result, "sessionId").Str
	scope.WithAttrs(attribute.String(cnst.AttrSessionID, sessionID))
	c.logger.Debug("attached",
		zap.String("target_id", targetID),
		zap.String("session_id", sessionID))
	return sessionID, nil
}

// Detach asks the browser to detach sessionID and unregisters it locally
// whatever the outcome of that request. Subscriptions of the session end with
// ErrSessionInvalidated.
func (c *Client) Detach(ctx context.Context, sessionID string) error {
	conn, err := c.readyConn()
	if err != nil {
		return err
	}
	if !conn.sessions.IsKnown(sessionID) {
		return fmt.Errorf("%s: %w: %s", cnst.MethodDetachFromTarget, ErrUnknownSession, sessionID)
	}

	_, callErr := c.call(ctx, "", cnst.MethodDetachFromTarget, map[string]any{"sessionId": sessionID}, 0, nil)
	if conn.sessions.Unregister(sessionID, errDetached) {
		c.metrics.SetSessions(conn.sessions.Len())
	}
	if callErr != nil {
		c.logger.Debug("detach request failed, session removed locally",
			zap.String("session_id", sessionID),
			zap.Error(callErr))
	}
	return callErr
}
