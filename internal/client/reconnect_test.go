package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
)

func fastReconnect(attempts uint) ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:         true,
		MaxAttempts:     attempts,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      2,
	}
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) handler(_, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, to)
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestClient_ReconnectsWithFreshState(t *testing.T) {
	refused := errors.New("connection refused")
	var log stateLog
	c, p, b := connected(t, WithReconnect(fastReconnect(5)), WithStateHandler(log.handler))
	b.attach(c, "T1", "S1")
	firstID := c.ConnectionID()

	sub, err := c.Subscribe(context.Background(), "S1", "*")
	require.NoError(t, err)

	p.failNext(refused)
	b.peer.Close()

	waitEnded(t, sub)
	require.ErrorIs(t, sub.Err(), ErrConnectionLost)

	b2 := p.browser(t)
	require.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)
	assert.NotEqual(t, firstID, c.ConnectionID())
	assert.Empty(t, c.Sessions())
	assert.Equal(t, uint64(1), c.Stats().Reconnects)

	_, err = c.Call(context.Background(), "S1", "Page.enable", nil, 0)
	require.ErrorIs(t, err, ErrUnknownSession)

	res := callAsync(c, "", cnst.MethodBrowserGetVersion, nil, 0)
	req := b2.expect(cnst.MethodBrowserGetVersion)
	assert.Equal(t, int64(1), req.ID)
	b2.reply(req.ID, `{}`)
	require.NoError(t, await(t, res).err)

	assert.Equal(t, []State{StateConnecting, StateReady, StateReconnecting, StateReady}, log.get())
}

func TestClient_CallsDuringReconnectAreRejected(t *testing.T) {
	p := newPipes()
	c := New(zap.NewNop(), WithTransport(p.factory()), WithReconnect(ReconnectPolicy{
		Enabled:         true,
		InitialInterval: time.Hour,
	}))
	t.Cleanup(func() { _ = c.Disconnect() })
	require.NoError(t, c.Connect(context.Background(), "pipe://browser"))
	b := p.browser(t)

	p.failAlways(errors.New("connection refused"))
	b.peer.Close()

	require.Eventually(t, func() bool { return c.State() == StateReconnecting }, waitFor, 5*time.Millisecond)
	_, err := c.Call(context.Background(), "", cnst.MethodBrowserGetVersion, nil, 0)
	require.ErrorIs(t, err, ErrNotReady)

	// Disconnect interrupts the backoff wait
	require.NoError(t, c.Disconnect())
	assert.Equal(t, StateClosed, c.State())
}

func TestClient_ReconnectGivesUp(t *testing.T) {
	var log stateLog
	c, p, b := connected(t, WithReconnect(fastReconnect(3)), WithStateHandler(log.handler))

	p.failAlways(errors.New("connection refused"))
	b.peer.Close()

	require.Eventually(t, func() bool { return c.State() == StateClosed }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []State{StateConnecting, StateReady, StateReconnecting, StateClosed}, log.get())
	assert.Zero(t, c.Stats().Reconnects)

	_, err := c.Call(context.Background(), "", cnst.MethodBrowserGetVersion, nil, 0)
	require.ErrorIs(t, err, ErrClosed)
}

func TestClient_NoReconnectAfterDisconnect(t *testing.T) {
	c, p, _ := connected(t, WithReconnect(fastReconnect(5)))

	require.NoError(t, c.Disconnect())
	assert.Equal(t, StateClosed, c.State())
	select {
	case <-p.peers:
		t.Fatal("client redialed after Disconnect")
	case <-time.After(50 * time.Millisecond):
	}
}
