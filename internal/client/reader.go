package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/protocol"
	"github.com/amoylab/janus/internal/tap"
	"github.com/amoylab/janus/internal/transport"
	"github.com/amoylab/janus/pkg/utils"
)

// readLoop is the only consumer of conn's inbound frames. Processing a frame
// never blocks: waiters are buffered and subscriptions drop on overflow.
func (c *Client) readLoop(conn *connection) {
	defer c.wg.Done()
	log := c.logger.With(zap.String("connection_id", conn.id))

	for {
		frame, err := conn.tr.Receive(context.Background())
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Info("remote closed the connection")
			case errors.Is(err, transport.ErrNotConnected):
				log.Debug("reader stopped")
			default:
				log.Warn("connection failed", zap.Error(err))
			}
			c.connectionLost(conn, err)
			return
		}
		c.handleFrame(conn, frame)
	}
}

func (c *Client) handleFrame(conn *connection, frame []byte) {
	in, err := protocol.Decode(frame)
	if err != nil {
		c.diagnose(conn, tap.Diagnostic{
			Kind:    tap.KindMalformedFrame,
			Payload: string(frame),
			Err:     err.Error(),
		})
		return
	}

	switch msg := in.(type) {
	case *protocol.Response:
		var ok bool
		if msg.Error != nil {
			ok = conn.table.Fail(msg.ID, msg.Error)
		} else {
			ok = conn.table.Resolve(msg.ID, msg.Result)
		}
		if !ok {
			c.diagnose(conn, tap.Diagnostic{
				Kind:      tap.KindOrphanResponse,
				SessionID: msg.SessionID,
				RequestID: msg.ID,
				Payload:   string(frame),
			})
		}
	case *protocol.Event:
		c.handleEvent(conn, msg, frame)
	}
}

func (c *Client) handleEvent(conn *connection, evt *protocol.Event, frame []byte) {
	if conn.lost.Load() {
		return
	}

	// auto-attached children must be routable before their first event
	if evt.Method == cnst.EventAttachedToTarget {
		params := gjson.GetManyBytes(evt.Params, "sessionId", "targetInfo.targetId")
		if sid := params[0].Str; sid != "" {
			if _, err := conn.sessions.Register(sid, params[1].Str); err != nil {
				c.logger.Warn("failed to register attached session", zap.String("session_id", sid), zap.Error(err))
			}
			c.metrics.SetSessions(conn.sessions.Len())
		}
	}

	if evt.SessionID != "" && !conn.sessions.IsKnown(evt.SessionID) {
		c.diagnose(conn, tap.Diagnostic{
			Kind:      tap.KindUnknownSession,
			SessionID: evt.SessionID,
			Method:    evt.Method,
			Payload:   string(frame),
		})
		return
	}

	c.router.Dispatch(*evt)

	if evt.Method == cnst.EventDetachedFromTarget {
		if sid := gjson.GetBytes(evt.Params, "sessionId").Str; sid != "" {
			if conn.sessions.Unregister(sid, errDetached) {
				c.metrics.SetSessions(conn.sessions.Len())
			}
		}
	}
}

func (c *Client) diagnose(conn *connection, d tap.Diagnostic) {
	d.ConnectionID = conn.id
	d.At = time.Now()
	d.Payload = utils.Truncate(d.Payload, c.payloadLimit)
	c.metrics.Diagnostic(string(d.Kind))
	c.sink.Record(d)
}
