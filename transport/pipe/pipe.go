// Package pipe is an in-process network. [NewPair] connects two [Conn]
// ends directly; a [Network] adds named listeners that can be dialed.
// Deadlines run on an injectable clock so tests can drive them.
package pipe

import (
	"sync"
	"time"

	"http1d/transport"

	"github.com/benbjohnson/clock"
)

// Addr names one end of a pipe.
type Addr struct {
	Name string
}

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return a.Name }

var (
	_ transport.Addr = Addr{}
	_ transport.Conn = (*Conn)(nil)
)

// Conn is one end of a pipe. Like [net.Pipe] there is no buffering:
// Write returns once the peer has read every byte.
type Conn struct {
	addr Addr
	peer *Conn

	// Chunks written by the peer are offered here; the reader answers on
	// taken with how much of the chunk it consumed.
	offer chan []byte
	taken chan int

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	readDeadline  *deadline
	writeDeadline *deadline
}

// NewPair returns two connected ends whose local addresses are local and
// remote respectively.
func NewPair(local, remote string, clock clock.Clock) (*Conn, *Conn) {
	a, b := newConn(local, clock), newConn(remote, clock)
	a.peer, b.peer = b, a
	return a, b
}

func newConn(name string, clock clock.Clock) *Conn {
	return &Conn{
		addr:          Addr{Name: name},
		offer:         make(chan []byte),
		taken:         make(chan int),
		done:          make(chan struct{}),
		readDeadline:  &deadline{clock: clock, expired: make(chan struct{})},
		writeDeadline: &deadline{clock: clock, expired: make(chan struct{})},
	}
}

func (c *Conn) LocalAddr() transport.Addr  { return c.addr }
func (c *Conn) RemoteAddr() transport.Addr { return c.peer.addr }

func (c *Conn) SetReadDeadLine(t time.Time)  { c.readDeadline.set(t) }
func (c *Conn) SetWriteDeadLine(t time.Time) { c.writeDeadline.set(t) }

// Close unblocks pending reads and writes on both ends.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Conn) Read(b []byte) (int, error) {
	expired := c.readDeadline.channel()
	if err := c.ready(expired); err != nil {
		return 0, err
	}

	select {
	case chunk := <-c.offer:
		n := copy(b, chunk)
		c.taken <- n
		return n, nil
	case <-c.done:
		return 0, transport.ErrConnClosed
	case <-c.peer.done:
		return 0, transport.ErrConnClosed
	case <-expired:
		return 0, transport.ErrDeadLineExceeded
	}
}

func (c *Conn) Write(b []byte) (int, error) {
	expired := c.writeDeadline.channel()
	if err := c.ready(expired); err != nil {
		return 0, err
	}

	// Concurrent writes are delivered whole, one after another.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for len(b) > 0 {
		select {
		case c.peer.offer <- b:
			n := <-c.peer.taken
			b = b[n:]
			written += n
		case <-c.done:
			return written, transport.ErrConnClosed
		case <-c.peer.done:
			return written, transport.ErrConnClosed
		case <-expired:
			return written, transport.ErrDeadLineExceeded
		}
	}

	return written, nil
}

// ready fails fast so a closed or expired end never races a ready peer.
func (c *Conn) ready(expired <-chan struct{}) error {
	if fired(c.done) || fired(c.peer.done) {
		return transport.ErrConnClosed
	}
	if fired(expired) {
		return transport.ErrDeadLineExceeded
	}
	return nil
}

// deadline closes expired when the clock passes the configured time.
// Every set starts a new generation so a timer from an earlier call can
// never expire a later deadline.
type deadline struct {
	clock clock.Clock

	mu      sync.Mutex
	gen     uint64
	timer   *clock.Timer
	expired chan struct{}
}

func (d *deadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if fired(d.expired) {
		d.expired = make(chan struct{})
	}

	if t.IsZero() {
		return
	}

	wait := d.clock.Until(t)
	if wait <= 0 {
		close(d.expired)
		return
	}

	gen, expired := d.gen, d.expired
	d.timer = d.clock.AfterFunc(wait, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen == gen {
			close(expired)
		}
	})
}

func (d *deadline) channel() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expired
}

func fired(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
