package pipe

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"http1d/transport"

	"github.com/benbjohnson/clock"
)

// Network routes dials to listeners by name. Dial blocks until the
// listener accepts, so there is no backlog.
type Network struct {
	clock clock.Clock

	mu        sync.Mutex
	listeners map[Addr]*Listener

	dials atomic.Uint64
}

var _ transport.ConnDialer = (*Network)(nil)

func NewNetwork(clock clock.Clock) *Network {
	return &Network{clock: clock, listeners: make(map[Addr]*Listener)}
}

func (n *Network) Listen(addr Addr) (*Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.listeners[addr]; taken {
		return nil, transport.ErrAddrAlreadyInUse
	}

	l := &Listener{
		addr:     addr,
		network:  n,
		incoming: make(chan *Conn),
		closed:   make(chan struct{}),
	}
	n.listeners[addr] = l
	return l, nil
}

func (n *Network) listener(addr transport.Addr) (*Listener, bool) {
	a, ok := addr.(Addr)
	if !ok {
		return nil, false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.listeners[a]
	return l, ok
}

// Dial connects to the listener at addr. The returned end is named after
// the listener with a per-dial suffix.
func (n *Network) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	l, ok := n.listener(addr)
	if !ok {
		return nil, transport.ErrNetUnreachable
	}

	name := l.addr.Name + "#" + strconv.FormatUint(n.dials.Add(1), 10)
	local, remote := NewPair(name, l.addr.Name, n.clock)

	select {
	case l.incoming <- remote:
		return local, nil
	case <-l.closed:
		return nil, transport.ErrConnRefused
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Listener hands dialed connections to Accept.
type Listener struct {
	addr    Addr
	network *Network

	incoming chan *Conn

	closeMu sync.Mutex
	closed  chan struct{}
}

var _ transport.ConnListener = (*Listener)(nil)

func (l *Listener) Addr() transport.Addr { return l.addr }

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close refuses pending and future dials and frees the address.
// Closing twice reports [transport.ErrConnListenerClosed].
func (l *Listener) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()

	if fired(l.closed) {
		return transport.ErrConnListenerClosed
	}
	close(l.closed)

	l.network.mu.Lock()
	delete(l.network.listeners, l.addr)
	l.network.mu.Unlock()

	return nil
}
