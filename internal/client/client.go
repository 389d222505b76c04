package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/correlation"
	"github.com/amoylab/janus/internal/registry"
	"github.com/amoylab/janus/internal/router"
	"github.com/amoylab/janus/internal/tap"
	"github.com/amoylab/janus/internal/transport"
	"github.com/amoylab/janus/pkg/metrics"
	"github.com/amoylab/janus/pkg/trace"
)

const (
	DefaultCallTimeout    = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// connection bundles one physical transport with the request table and
// session registry that live exactly as long as it does.
type connection struct {
	id       string
	tr       transport.Interface
	table    *correlation.Table
	sessions *registry.Registry

	lost     atomic.Bool
	lostOnce sync.Once
}

// Client supervises a single debugger connection. It multiplexes calls and
// event subscriptions for any number of attached sessions over it and
// reconnects according to its ReconnectPolicy.
type Client struct {
	logger *zap.Logger
	router *router.Router
	tracer *trace.Builder

	callTimeout    time.Duration
	connectTimeout time.Duration
	buffer         int
	reconnect      ReconnectPolicy
	factory        transport.Factory
	sink           tap.Sink
	payloadLimit   int
	metrics        *metrics.Metrics
	onState        StateHandler

	// life is cancelled by Disconnect and bounds dials and reconnect waits
	life context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	state State
	url   string
	conn  *connection

	reconnects atomic.Uint64
	wg         sync.WaitGroup
}

// New creates an idle client.
func New(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		logger:         logger.Named("client"),
		tracer:         trace.Tracer(cnst.TraceClient),
		callTimeout:    DefaultCallTimeout,
		connectTimeout: DefaultConnectTimeout,
		buffer:         router.DefaultBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = tap.NewLogSink(c.logger)
	}
	if c.factory == nil {
		c.factory = transport.WebSocketFactory(logger, transport.WebSocketOptions{})
	}
	c.router = router.New(logger, c.metrics)
	c.life, c.stop = context.WithCancel(context.Background())
	return c
}

// Connect dials url and starts reading. It is only valid in StateIdle; on
// failure the client returns to StateIdle and Connect may be retried.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateClosed:
		c.mu.Unlock()
		return &Error{Op: "connect", Err: ErrClosed}
	default:
		c.mu.Unlock()
		return &Error{Op: "connect", Err: ErrAlreadyConnected}
	}
	c.url = url
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	scope := c.tracer.Start(ctx, cnst.SpanConnect)
	defer scope.End()

	conn, err := c.dial(scope.Ctx, url)

	c.mu.Lock()
	if err != nil {
		if c.state == StateConnecting {
			c.setStateLocked(StateIdle)
		}
		c.mu.Unlock()
		scope.Fail(err)
		return &Error{Op: "connect", Err: err}
	}
	if c.state != StateConnecting {
		// Disconnect won the race
		c.mu.Unlock()
		_ = conn.tr.Close()
		return &Error{Op: "connect", Err: ErrClosed}
	}
	c.installLocked(conn)
	c.setStateLocked(StateReady)
	c.mu.Unlock()

	c.logger.Info("connected",
		zap.String("url", url),
		zap.String("connection_id", conn.id))
	return nil
}

// dial opens a fresh transport. The attempt is abandoned when ctx is done or
// the client is disconnected.
func (c *Client) dial(ctx context.Context, url string) (*connection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.life, cancel)
	defer stop()
	if c.connectTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.connectTimeout)
		defer cancelTimeout()
	}

	tr := c.factory()
	if err := tr.Connect(ctx, url); err != nil {
		_ = tr.Close()
		return nil, err
	}

	conn := &connection{
		id:    uuid.NewString(),
		tr:    tr,
		table: correlation.NewTable(c.logger),
	}
	conn.sessions = registry.New(c.logger, func(s registry.Session, reason error) {
		c.router.InvalidateSession(s.ID, reason)
	})
	return conn, nil
}

func (c *Client) installLocked(conn *connection) {
	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)
}

// teardownLocked fails everything that belongs to conn. The caller closes the
// transport after releasing the lock.
func (c *Client) teardownLocked(conn *connection, cause error) {
	conn.lost.Store(true)
	c.conn = nil

	callErr, streamErr := lostErrors(cause)
	abandoned := conn.table.AbandonAll(callErr)
	sessions := conn.sessions.Clear(streamErr)
	subs := c.router.InvalidateAll(streamErr)
	c.metrics.SetSessions(0)

	c.logger.Info("connection torn down",
		zap.String("connection_id", conn.id),
		zap.Int("abandoned_calls", abandoned),
		zap.Int("sessions", sessions),
		zap.Int("subscriptions", subs),
		zap.Error(cause))
}

// connectionLost runs once per connection when its reader stops.
func (c *Client) connectionLost(conn *connection, cause error) {
	conn.lostOnce.Do(func() {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		c.teardownLocked(conn, cause)
		if c.reconnect.Enabled && c.state == StateReady {
			c.setStateLocked(StateReconnecting)
			c.wg.Add(1)
			go c.reconnectLoop(c.url)
		} else {
			c.setStateLocked(StateClosed)
			c.stop()
		}
		c.mu.Unlock()

		_ = conn.tr.Close()
	})
}

// Disconnect closes the connection and moves the client to StateClosed. All
// pending calls fail with ErrConnectionLost and all subscriptions end. It is
// safe to call more than once.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.teardownLocked(conn, ErrClosed)
	}
	if c.state != StateClosed {
		c.setStateLocked(StateClosed)
	}
	c.stop()
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.tr.Close()
	}
	c.wg.Wait()
	if err != nil {
		return &Error{Op: "disconnect", Err: err}
	}
	return nil
}

func (c *Client) setStateLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.logger.Debug("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.onState != nil {
		c.onState(from, to)
	}
}

// readyConn returns the live connection or why there is none.
func (c *Client) readyConn() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyConnLocked()
}

func (c *Client) readyConnLocked() (*connection, error) {
	switch c.state {
	case StateReady:
		return c.conn, nil
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotReady, c.state)
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID identifies the live connection, or is empty without one. A new
// ID is generated for every reconnect.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.id
}

// Sessions lists the sessions attached on the live connection.
func (c *Client) Sessions() []registry.Session {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.sessions.List()
}

// Pending lists the outstanding calls on the live connection.
func (c *Client) Pending() []correlation.Pending {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.table.Pending()
}

// Stats is a snapshot of the client.
type Stats struct {
	State        string       `json:"state"`
	URL          string       `json:"url"`
	ConnectionID string       `json:"connection_id,omitempty"`
	Pending      int          `json:"pending"`
	Sessions     int          `json:"sessions"`
	Reconnects   uint64       `json:"reconnects"`
	Router       router.Stats `json:"router"`
}

// Stats returns a snapshot of the client.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		State:      c.state.String(),
		URL:        c.url,
		Reconnects: c.reconnects.Load(),
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		s.ConnectionID = conn.id
		s.Pending = conn.table.Len()
		s.Sessions = conn.sessions.Len()
	}
	s.Router = c.router.Stats()
	return s
}
