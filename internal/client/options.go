package client

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/common/config"
	"github.com/amoylab/janus/internal/tap"
	"github.com/amoylab/janus/internal/transport"
	"github.com/amoylab/janus/pkg/metrics"
	"github.com/amoylab/janus/pkg/trace"
)

// ReconnectPolicy controls automatic reconnection after connection loss.
type ReconnectPolicy struct {
	Enabled             bool
	MaxAttempts         uint // 0 = unlimited
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxElapsedTime      time.Duration // 0 = unlimited
}

// ReconnectPolicyFromConfig converts the reconnect config section.
func ReconnectPolicyFromConfig(cfg config.ReconnectConfig) ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:             cfg.Enabled,
		MaxAttempts:         cfg.MaxAttempts,
		InitialInterval:     cfg.InitialInterval,
		MaxInterval:         cfg.MaxInterval,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: cfg.RandomizationFactor,
		MaxElapsedTime:      cfg.MaxElapsedTime,
	}
}

func (p ReconnectPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if p.RandomizationFactor >= 0 && p.RandomizationFactor <= 1 {
		b.RandomizationFactor = p.RandomizationFactor
	}
	return b
}

// StateHandler observes state transitions. It runs with the client locked and
// must not call back into the Client.
type StateHandler func(from, to State)

type Option func(*Client)

// WithCallTimeout sets the timeout used when Call is given none.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithConnectTimeout bounds each dial, including reconnect attempts.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithSubscriptionBuffer sets the per-subscription event buffer.
func WithSubscriptionBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithReconnect enables reconnection with the given policy.
func WithReconnect(p ReconnectPolicy) Option {
	return func(c *Client) {
		c.reconnect = p
	}
}

// WithTransport sets the factory creating one transport per connection.
func WithTransport(f transport.Factory) Option {
	return func(c *Client) {
		c.factory = f
	}
}

// WithSink sets where unroutable inbound traffic is recorded. Without it
// records are logged at warn level; pass tap.Discard to drop them.
func WithSink(s tap.Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithPayloadLimit caps how much of an offending frame a diagnostic keeps.
func WithPayloadLimit(n int) Option {
	return func(c *Client) {
		c.payloadLimit = n
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider traces calls with tp instead of the global provider.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = trace.TracerFrom(tp, cnst.TraceClient)
	}
}

// WithStateHandler registers a state transition observer.
func WithStateHandler(h StateHandler) Option {
	return func(c *Client) {
		c.onState = h
	}
}

// FromConfig translates the client, reconnect and tap sections into options.
func FromConfig(logger *zap.Logger, cfg *config.Config) []Option {
	return []Option{
		WithCallTimeout(cfg.Client.CallTimeout),
		WithConnectTimeout(cfg.Client.ConnectTimeout),
		WithSubscriptionBuffer(cfg.Client.SubscriptionBuffer),
		WithReconnect(ReconnectPolicyFromConfig(cfg.Reconnect)),
		WithPayloadLimit(cfg.Tap.PayloadLimit),
		WithTransport(transport.WebSocketFactory(logger, transport.WebSocketOptions{
			HandshakeTimeout: cfg.Client.HandshakeTimeout,
			WriteTimeout:     cfg.Client.WriteTimeout,
			ReadLimit:        cfg.Client.ReadLimit,
			Headers:          cfg.Client.Headers,
		})),
	}
}
