// Package client is a minimal keep-alive HTTP/1.1 client over a single
// [transport.Conn]: one request at a time, Content-Length bodies only.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"http1d/application/http"
	iolib "http1d/lib/io"
	"http1d/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type Options struct {
	// Timeout bounds writing a request and reading its response.
	// Zero disables it.
	Timeout time.Duration

	Decode http.DecodeOptions
}

var ErrConnClosed = errors.New("client connection is closed")

type Conn struct {
	con transport.Conn

	enc *http.RequestEncoder
	dec *http.ResponseDecoder

	logger *slog.Logger
	clock  clock.Clock
	opts   Options

	closed bool
	mu     sync.Mutex // serializes roundtrips and guards closed.
}

func Dial(
	ctx context.Context,
	d transport.ConnDialer,
	addr transport.Addr,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) (*Conn, error) {
	con, err := d.Dial(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing")
	}
	return NewConn(con, logger, clock, opts), nil
}

func NewConn(con transport.Conn, logger *slog.Logger, clock clock.Clock, opts Options) *Conn {
	return &Conn{
		con:    con,
		enc:    http.NewRequestEncoder(con),
		dec:    http.NewResponseDecoder(iolib.NewUntilReader(con), opts.Decode),
		logger: logger.With("server", con.RemoteAddr().String()),
		clock:  clock,
		opts:   opts,
	}
}

// Do sends request and waits for its response. A missing Host field is
// filled with the remote address. The connection is closed when the
// server announces it, when ctx ends first, or on any error.
func (c *Conn) Do(ctx context.Context, request *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnClosed
	}

	if !request.Headers.Has("Host") {
		head := *request.RequestHead
		head.Headers = append(head.Headers.Clone(), http.Field{Name: "Host", Value: c.con.RemoteAddr().String()})
		request = http.NewRequest(&head, request.Body)
	}

	stop := context.AfterFunc(ctx, func() { c.con.Close() })
	defer stop()

	response, err := c.roundtrip(request)
	if err != nil {
		c.closeLocked()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	if v, _ := response.Headers.Get("Connection"); v == "close" {
		c.logger.Debug("server closes connection")
		c.closeLocked()
	}

	return response, nil
}

func (c *Conn) roundtrip(request *http.Request) (*http.Response, error) {
	deadline := time.Time{}
	if c.opts.Timeout > 0 {
		deadline = c.clock.Now().Add(c.opts.Timeout)
	}

	c.con.SetWriteDeadLine(deadline)
	if err := c.enc.Encode(request); err != nil {
		return nil, errors.Wrap(err, "sending request")
	}

	c.con.SetReadDeadLine(deadline)
	response, err := c.dec.Decode(request.Method)
	if err != nil {
		return nil, errors.Wrap(err, "receiving response")
	}

	return response, nil
}

// Closed reports whether the connection can no longer be used.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.con.Close()
}
