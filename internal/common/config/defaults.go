package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/amoylab/janus/internal/common/cnst"
)

const (
	SinkLog    = "log"
	SinkMemory = "memory"
	SinkRedis  = "redis"
)

// SetDefaults fills every unset field with its default value.
func (c *Config) SetDefaults() {
	cl := &c.Client
	if cl.CallTimeout == 0 {
		cl.CallTimeout = 30 * time.Second
	}
	if cl.ConnectTimeout == 0 {
		cl.ConnectTimeout = 10 * time.Second
	}
	if cl.HandshakeTimeout == 0 {
		cl.HandshakeTimeout = 10 * time.Second
	}
	if cl.WriteTimeout == 0 {
		cl.WriteTimeout = 10 * time.Second
	}
	if cl.SubscriptionBuffer == 0 {
		cl.SubscriptionBuffer = 64
	}

	rc := &c.Reconnect
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 5
	}
	if rc.InitialInterval == 0 {
		rc.InitialInterval = 500 * time.Millisecond
	}
	if rc.MaxInterval == 0 {
		rc.MaxInterval = 30 * time.Second
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 1.5
	}
	if rc.RandomizationFactor == 0 {
		rc.RandomizationFactor = 0.5
	}

	lg := &c.Logger
	if lg.Level == "" {
		lg.Level = "info"
	}
	if lg.Format == "" {
		lg.Format = "console"
	}
	if lg.Output == "" {
		lg.Output = "stdout"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = cnst.AppName
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = cnst.AppName
	}
	if c.Tracing.Protocol == "" {
		c.Tracing.Protocol = "grpc"
	}

	tp := &c.Tap
	if len(tp.Sinks) == 0 {
		tp.Sinks = []string{SinkLog, SinkMemory}
	}
	if tp.MemorySize == 0 {
		tp.MemorySize = 256
	}
	if tp.PayloadLimit == 0 {
		tp.PayloadLimit = 2048
	}
	if tp.Redis.ClusterType == "" {
		tp.Redis.ClusterType = cnst.RedisClusterTypeSingle
	}
	if tp.Redis.Topic == "" {
		tp.Redis.Topic = cnst.AppName + ":diagnostics"
	}
	if tp.Redis.QueueSize == 0 {
		tp.Redis.QueueSize = 256
	}

	if c.Inspect.Addr == "" {
		c.Inspect.Addr = "127.0.0.1:8090"
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Client.URL != "" {
		u, err := url.Parse(c.Client.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("client.url: %w", err))
		case !supportedScheme(u.Scheme):
			errs = append(errs, fmt.Errorf("client.url: unsupported scheme %q, want ws, wss, http or https", u.Scheme))
		}
	}
	for name, d := range map[string]time.Duration{
		"client.call_timeout":        c.Client.CallTimeout,
		"client.connect_timeout":     c.Client.ConnectTimeout,
		"client.handshake_timeout":   c.Client.HandshakeTimeout,
		"client.write_timeout":       c.Client.WriteTimeout,
		"reconnect.initial_interval": c.Reconnect.InitialInterval,
		"reconnect.max_interval":     c.Reconnect.MaxInterval,
		"reconnect.max_elapsed_time": c.Reconnect.MaxElapsedTime,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", name))
		}
	}
	if c.Client.ReadLimit < 0 {
		errs = append(errs, errors.New("client.read_limit: must not be negative"))
	}
	if c.Client.SubscriptionBuffer < 1 {
		errs = append(errs, errors.New("client.subscription_buffer: must be at least 1"))
	}
	if c.Reconnect.Multiplier < 1 {
		errs = append(errs, errors.New("reconnect.multiplier: must be at least 1"))
	}
	if c.Reconnect.RandomizationFactor < 0 || c.Reconnect.RandomizationFactor > 1 {
		errs = append(errs, errors.New("reconnect.randomization_factor: must be within [0, 1]"))
	}
	if p := c.Tracing.Protocol; p != "grpc" && p != "http" {
		errs = append(errs, fmt.Errorf("tracing.protocol: unsupported %q", p))
	}
	for _, s := range c.Tap.Sinks {
		switch strings.ToLower(s) {
		case SinkLog, SinkMemory, SinkRedis:
		default:
			errs = append(errs, fmt.Errorf("tap.sinks: unknown sink %q", s))
		}
	}
	if c.Tap.MemorySize < 1 {
		errs = append(errs, errors.New("tap.memory_size: must be at least 1"))
	}
	if c.Tap.HasSink(SinkRedis) && c.Tap.Redis.Addr == "" {
		errs = append(errs, errors.New("tap.redis.addr: required when the redis sink is enabled"))
	}
	return errors.Join(errs...)
}

// HasSink reports whether the named sink is enabled.
func (t TapConfig) HasSink(name string) bool {
	for _, s := range t.Sinks {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// http(s) endpoints are resolved through /json/version before dialing.
func supportedScheme(scheme string) bool {
	switch scheme {
	case "ws", "wss", "http", "https":
		return true
	}
	return false
}
