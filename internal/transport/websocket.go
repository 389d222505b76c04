package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketOptions configures the websocket transport.
type WebSocketOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	Headers          map[string]string
}

// WebSocket is a Transport backed by a gorilla websocket connection.
type WebSocket struct {
	logger *zap.Logger
	opts   WebSocketOptions

	state atomic.Int32
	url   string

	discovery *http.Client
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

var _ Interface = (*WebSocket)(nil)

// NewWebSocket creates an unconnected websocket transport.
func NewWebSocket(logger *zap.Logger, opts WebSocketOptions) *WebSocket {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &WebSocket{
		logger:    logger.Named("transport.websocket"),
		opts:      opts,
		discovery: NewDiscoveryClient(opts.HandshakeTimeout),
		closed:    make(chan struct{}),
	}
}

// WebSocketFactory returns a Factory producing websocket transports.
func WebSocketFactory(logger *zap.Logger, opts WebSocketOptions) Factory {
	return func() Interface {
		return NewWebSocket(logger, opts)
	}
}

// Connect implements Interface.Connect
func (t *WebSocket) Connect(ctx context.Context, url string) error {
	if !t.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return &Error{Op: "dial", URL: url, Err: errors.New("transport already used")}
	}
	t.url = url

	resolved, err := ResolveURL(ctx, t.discovery, url)
	if err != nil {
		t.state.Store(int32(StateFailed))
		return err
	}
	if resolved != url {
		t.logger.Debug("resolved debugger endpoint", zap.String("endpoint", url), zap.String("url", resolved))
		url = resolved
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.opts.HandshakeTimeout,
	}
	header := http.Header{}
	for k, v := range t.opts.Headers {
		header.Set(k, v)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.state.Store(int32(StateFailed))
		return &Error{Op: "dial", URL: url, Err: err}
	}
	if t.isClosed() {
		_ = conn.Close()
		return ErrNotConnected
	}
	if t.opts.ReadLimit > 0 {
		conn.SetReadLimit(t.opts.ReadLimit)
	}

	t.conn = conn
	t.state.Store(int32(StateConnected))
	t.logger.Debug("websocket connected", zap.String("url", url))
	return nil
}

// Send implements Interface.Send
func (t *WebSocket) Send(ctx context.Context, frame []byte) error {
	if t.State() != StateConnected {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Time{}
	if t.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(t.opts.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return &Error{Op: "write", URL: t.url, Err: err}
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if t.isClosed() {
			return ErrNotConnected
		}
		return &Error{Op: "write", URL: t.url, Err: err}
	}
	return nil
}

// Receive implements Interface.Receive
func (t *WebSocket) Receive(_ context.Context) ([]byte, error) {
	if t.conn == nil {
		return nil, ErrNotConnected
	}
	for {
		typ, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.isClosed() {
				return nil, ErrNotConnected
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.state.Store(int32(StateDisconnected))
				return nil, io.EOF
			}
			t.state.Store(int32(StateFailed))
			return nil, &Error{Op: "read", URL: t.url, Err: err}
		}
		if typ != websocket.TextMessage {
			t.logger.Debug("skipping non-text frame", zap.Int("type", typ), zap.Int("size", len(data)))
			continue
		}
		return data, nil
	}
}

// Close implements Interface.Close
func (t *WebSocket) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.conn == nil {
			t.state.Store(int32(StateDisconnected))
			return
		}
		t.state.Store(int32(StateDisconnecting))

		t.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		t.writeMu.Unlock()

		if cerr := t.conn.Close(); cerr != nil {
			err = &Error{Op: "close", URL: t.url, Err: cerr}
		}
		t.state.Store(int32(StateDisconnected))
		t.logger.Debug("websocket closed", zap.String("url", t.url))
	})
	return err
}

// State implements Interface.State
func (t *WebSocket) State() State {
	return State(t.state.Load())
}

func (t *WebSocket) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}
