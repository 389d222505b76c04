package transport

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

const pipeBuffer = 256

// Pipe is an in-memory Transport. The paired Peer plays the remote endpoint,
// which makes Pipe useful for embedding a scripted browser and for tests.
type Pipe struct {
	toPeer   chan []byte
	toClient chan []byte

	state    atomic.Int32
	dialErr  error
	url      string
	once     sync.Once
	closed   chan struct{}
	peerGone chan struct{}
	peerOnce sync.Once
}

var _ Interface = (*Pipe)(nil)

// Peer is the remote side of a Pipe.
type Peer struct {
	p *Pipe
}

// NewPipe creates a connected pair. Connect on the returned Pipe fails with
// dialErr when it is non-nil.
func NewPipe(dialErr error) (*Pipe, *Peer) {
	p := &Pipe{
		toPeer:   make(chan []byte, pipeBuffer),
		toClient: make(chan []byte, pipeBuffer),
		dialErr:  dialErr,
		closed:   make(chan struct{}),
		peerGone: make(chan struct{}),
	}
	return p, &Peer{p: p}
}

// Connect implements Interface.Connect
func (p *Pipe) Connect(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "dial", URL: url, Err: err}
	}
	p.url = url
	if p.dialErr != nil {
		p.state.Store(int32(StateFailed))
		return &Error{Op: "dial", URL: url, Err: p.dialErr}
	}
	p.state.Store(int32(StateConnected))
	return nil
}

// Send implements Interface.Send
func (p *Pipe) Send(ctx context.Context, frame []byte) error {
	if p.State() != StateConnected {
		return ErrNotConnected
	}
	buf := append([]byte(nil), frame...)
	select {
	case p.toPeer <- buf:
		return nil
	case <-p.closed:
		return ErrNotConnected
	case <-p.peerGone:
		return &Error{Op: "write", URL: p.url, Err: io.ErrClosedPipe}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements Interface.Receive
func (p *Pipe) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.toClient:
		return frame, nil
	default:
	}
	select {
	case frame := <-p.toClient:
		return frame, nil
	case <-p.closed:
		return nil, ErrNotConnected
	case <-p.peerGone:
		// drain what the peer wrote before hanging up
		select {
		case frame := <-p.toClient:
			return frame, nil
		default:
		}
		p.state.Store(int32(StateDisconnected))
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements Interface.Close
func (p *Pipe) Close() error {
	p.once.Do(func() {
		p.state.Store(int32(StateDisconnected))
		close(p.closed)
	})
	return nil
}

// State implements Interface.State
func (p *Pipe) State() State {
	return State(p.state.Load())
}

// URL returns the address passed to Connect.
func (p *Pipe) URL() string {
	return p.url
}

// Recv waits for the next frame the client sent.
func (r *Peer) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-r.p.toPeer:
		return frame, nil
	case <-r.p.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send delivers one frame to the client.
func (r *Peer) Send(frame []byte) error {
	select {
	case <-r.p.peerGone:
		return io.ErrClosedPipe
	case <-r.p.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case r.p.toClient <- append([]byte(nil), frame...):
		return nil
	case <-r.p.closed:
		return io.ErrClosedPipe
	}
}

// Close hangs up from the remote side; the client observes io.EOF.
func (r *Peer) Close() {
	r.p.peerOnce.Do(func() {
		close(r.p.peerGone)
	})
}

// Closed is closed once the client side closed the pipe.
func (r *Peer) Closed() <-chan struct{} {
	return r.p.closed
}
