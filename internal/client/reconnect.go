package client

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// reconnectLoop dials url until it succeeds, the policy gives up or the
// client is disconnected. Nothing survives from the previous connection.
func (c *Client) reconnectLoop(url string) {
	defer c.wg.Done()

	attempt := 0
	op := func() (*connection, error) {
		attempt++
		conn, err := c.dial(c.life, url)
		if err != nil {
			if c.life.Err() != nil {
				return nil, backoff.Permanent(ErrClosed)
			}
			return nil, err
		}
		return conn, nil
	}

	p := c.reconnect
	conn, err := backoff.Retry(c.life, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)

	c.mu.Lock()
	if err != nil {
		if c.state == StateReconnecting {
			c.logger.Error("giving up reconnecting", zap.String("url", url), zap.Int("attempts", attempt), zap.Error(err))
			c.metrics.Reconnect("failure")
			c.setStateLocked(StateClosed)
			c.stop()
		}
		c.mu.Unlock()
		return
	}
	if c.state != StateReconnecting {
		c.mu.Unlock()
		_ = conn.tr.Close()
		return
	}
	c.installLocked(conn)
	c.setStateLocked(StateReady)
	c.reconnects.Add(1)
	c.metrics.Reconnect("success")
	c.mu.Unlock()

	c.logger.Info("reconnected",
		zap.String("url", url),
		zap.String("connection_id", conn.id),
		zap.Int("attempts", attempt))
}
