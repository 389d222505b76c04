package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/protocol"
	"github.com/amoylab/janus/internal/transport"
)

const waitFor = 2 * time.Second

// pipes hands out in-memory transports; the remote ends are queued for the
// test to play the browser.
type pipes struct {
	mu       sync.Mutex
	dialErrs []error
	failAll  error
	peers    chan *transport.Peer
}

func newPipes(dialErrs ...error) *pipes {
	return &pipes{dialErrs: dialErrs, peers: make(chan *transport.Peer, 16)}
}

func (p *pipes) failNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialErrs = append(p.dialErrs, errs...)
}

func (p *pipes) failAlways(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAll = err
}

func (p *pipes) factory() transport.Factory {
	return func() transport.Interface {
		p.mu.Lock()
		err := p.failAll
		if len(p.dialErrs) > 0 {
			err, p.dialErrs = p.dialErrs[0], p.dialErrs[1:]
		}
		p.mu.Unlock()

		pipe, peer := transport.NewPipe(err)
		if err == nil {
			p.peers <- peer
		}
		return pipe
	}
}

func (p *pipes) browser(t *testing.T) *browser {
	t.Helper()
	select {
	case peer := <-p.peers:
		return &browser{t: t, peer: peer}
	case <-time.After(waitFor):
		t.Fatal("no connection was dialed")
		return nil
	}
}

// browser scripts the remote endpoint. Its methods must be called from the
// test goroutine.
type browser struct {
	t    *testing.T
	peer *transport.Peer
}

func (b *browser) expect(method string) protocol.Request {
	b.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	frame, err := b.peer.Recv(ctx)
	require.NoError(b.t, err, "waiting for %s", method)

	var req protocol.Request
	require.NoError(b.t, json.Unmarshal(frame, &req))
	if method != "" {
		require.Equal(b.t, method, req.Method)
	}
	return req
}

func (b *browser) expectNothing(d time.Duration) {
	b.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	frame, err := b.peer.Recv(ctx)
	require.ErrorIs(b.t, err, context.DeadlineExceeded, "unexpected frame %s", frame)
}

func (b *browser) send(frame string) {
	b.t.Helper()
	require.NoError(b.t, b.peer.Send([]byte(frame)))
}

func (b *browser) reply(id int64, result string) {
	b.t.Helper()
	b.send(fmt.Sprintf(`{"id":%d,"result":%s}`, id, result))
}

func (b *browser) replyError(id int64, code int, message string) {
	b.t.Helper()
	b.send(fmt.Sprintf(`{"id":%d,"error":{"code":%d,"message":%q}}`, id, code, message))
}

func (b *browser) event(sessionID, method, params string) {
	b.t.Helper()
	if sessionID == "" {
		b.send(fmt.Sprintf(`{"method":%q,"params":%s}`, method, params))
		return
	}
	b.send(fmt.Sprintf(`{"method":%q,"params":%s,"sessionId":%q}`, method, params, sessionID))
}

// attach drives Client.Attach through a scripted attachToTarget exchange.
func (b *browser) attach(c *Client, targetID, sessionID string) {
	b.t.Helper()
	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		sid, err := c.Attach(context.Background(), targetID)
		done <- result{sid, err}
	}()

	req := b.expect(cnst.MethodAttachToTarget)
	require.JSONEq(b.t, fmt.Sprintf(`{"targetId":%q,"flatten":true}`, targetID), string(req.Params))
	b.reply(req.ID, fmt.Sprintf(`{"sessionId":%q}`, sessionID))

	res := <-done
	require.NoError(b.t, res.err)
	require.Equal(b.t, sessionID, res.sid)
}

type callResult struct {
	value json.RawMessage
	err   error
}

func callAsync(c *Client, sessionID, method string, params any, timeout time.Duration) <-chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		v, err := c.Call(context.Background(), sessionID, method, params, timeout)
		ch <- callResult{v, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitFor):
		t.Fatal("call did not complete")
		return callResult{}
	}
}

func nextEvent(t *testing.T, sub *Subscription) protocol.Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return evt
	case <-time.After(waitFor):
		t.Fatal("no event delivered")
		return protocol.Event{}
	}
}

func noEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event %s", evt.Method)
		}
	default:
	}
}

// waitEnded drains sub until its channel closes.
func waitEnded(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription did not end")
		}
	}
}

// connected returns a ready client on an in-memory transport.
func connected(t *testing.T, opts ...Option) (*Client, *pipes, *browser) {
	t.Helper()
	p := newPipes()
	c := New(zap.NewNop(), append([]Option{WithTransport(p.factory())}, opts...)...)
	t.Cleanup(func() { _ = c.Disconnect() })

	require.NoError(t, c.Connect(context.Background(), "pipe://browser"))
	require.Equal(t, StateReady, c.State())
	return c, p, p.browser(t)
}
