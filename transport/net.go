package transport

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/tcplisten"
)

type ListenOptions struct {
	Network string // "tcp" when empty.
	Address string

	// ReusePort binds with SO_REUSEPORT so several processes can share the address.
	ReusePort bool
	// Backlog is only honoured together with ReusePort.
	Backlog int
}

// NetListener adapts a kernel [net.Listener] to [ConnListener].
type NetListener struct {
	l net.Listener

	closeOnce sync.Once
	closeErr  error
}

var _ ConnListener = (*NetListener)(nil)

func Listen(opts ListenOptions) (*NetListener, error) {
	network := opts.Network
	if network == "" {
		network = "tcp"
	}

	var (
		l   net.Listener
		err error
	)
	if opts.ReusePort {
		cfg := tcplisten.Config{ReusePort: true, Backlog: opts.Backlog}
		l, err = cfg.NewListener(reusePortNetwork(network, opts.Address), opts.Address)
	} else {
		l, err = net.Listen(network, opts.Address)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s %s", network, opts.Address)
	}

	return &NetListener{l: l}, nil
}

// tcplisten only accepts an explicit address family.
func reusePortNetwork(network, address string) string {
	if network != "tcp" {
		return network
	}
	if strings.HasPrefix(address, "[") {
		return "tcp6"
	}
	return "tcp4"
}

func (nl *NetListener) Accept(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { nl.Close() })
	defer stop()

	c, err := nl.l.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrConnListenerClosed
		}
		return nil, errors.Wrap(err, "accepting connection")
	}

	return &netConn{c: c}, nil
}

func (nl *NetListener) Close() error {
	nl.closeOnce.Do(func() { nl.closeErr = nl.l.Close() })
	return nl.closeErr
}

func (nl *NetListener) Addr() Addr { return nl.l.Addr() }

// NetDialer dials kernel TCP connections.
type NetDialer struct {
	Timeout time.Duration
}

var _ ConnDialer = NetDialer{}

func (d NetDialer) Dial(ctx context.Context, addr Addr) (Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	c, err := dialer.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", addr)
	}
	return &netConn{c: c}, nil
}

type netConn struct {
	c net.Conn
}

var _ Conn = (*netConn)(nil)

func (nc *netConn) Read(p []byte) (int, error) {
	n, err := nc.c.Read(p)
	return n, convertNetError(err)
}

func (nc *netConn) Write(p []byte) (int, error) {
	n, err := nc.c.Write(p)
	return n, convertNetError(err)
}

func (nc *netConn) Close() error {
	if err := nc.c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (nc *netConn) LocalAddr() Addr  { return nc.c.LocalAddr() }
func (nc *netConn) RemoteAddr() Addr { return nc.c.RemoteAddr() }

func (nc *netConn) SetReadDeadLine(t time.Time)  { _ = nc.c.SetReadDeadline(t) }
func (nc *netConn) SetWriteDeadLine(t time.Time) { _ = nc.c.SetWriteDeadline(t) }

// convertNetError maps kernel errors onto the transport sentinels so callers
// see the same errors as with in-memory pipes.
func convertNetError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrDeadLineExceeded
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return ErrConnClosed
	}
	return err
}
