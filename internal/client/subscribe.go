package client

import (
	"context"

	"github.com/amoylab/janus/internal/registry"
	"github.com/amoylab/janus/internal/router"
)

// Subscription is a stream of events. Its channel closes when the owner
// unsubscribes, the session detaches or the connection is lost; Err reports
// which.
type Subscription = router.Subscription

// Subscribe streams events whose method matches pattern ("*", "Domain.*",
// "Domain" or an exact method). An empty sessionID subscribes globally and
// sees events of the browser and of every session. The subscription ends when
// ctx is done.
func (c *Client) Subscribe(ctx context.Context, sessionID, pattern string) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.readyConnLocked()
	if err != nil {
		return nil, err
	}

	var sub *router.Subscription
	if sessionID == router.Global {
		sub, err = c.router.Subscribe(router.Global, pattern, c.buffer)
	} else {
		err = conn.sessions.WithSession(sessionID, func(registry.Session) error {
			var serr error
			sub, serr = c.router.Subscribe(sessionID, pattern, c.buffer)
			return serr
		})
	}
	if err != nil {
		return nil, err
	}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, sub.Unsubscribe)
		sub.OnEnd(func() { stop() })
	}
	return sub, nil
}
