package domain

import "context"

// Network wraps network tracking in one session.
type Network struct {
	base
}

func NewNetwork(conn Conn, sessionID string) *Network {
	return &Network{base{conn: conn, session: sessionID, name: "Network"}}
}

func (n *Network) Enable(ctx context.Context) error {
	return n.exec(ctx, "enable", nil)
}

func (n *Network) Disable(ctx context.Context) error {
	return n.exec(ctx, "disable", nil)
}

// SetExtraHTTPHeaders adds headers to every request the session sends.
func (n *Network) SetExtraHTTPHeaders(ctx context.Context, headers map[string]string) error {
	return n.exec(ctx, "setExtraHTTPHeaders", map[string]any{"headers": headers})
}
