package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"http1d/application/http"
	"http1d/application/http/status"
	iolib "http1d/lib/io"
	"http1d/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// conn serves one accepted connection until it closes.
type conn struct {
	con transport.Conn

	r      *iolib.UntilReader
	parser *http.HeadParser
	enc    *http.ResponseEncoder

	dispatcher Dispatcher
	clock      clock.Clock
	logger     *slog.Logger
	opts       Options

	state atomic.Int32
	// Shared with the server; set once shutdown begins.
	shuttingDown *atomic.Bool
}

func newConn(
	con transport.Conn,
	dispatcher Dispatcher,
	clock clock.Clock,
	logger *slog.Logger,
	shuttingDown *atomic.Bool,
	opts Options,
) *conn {
	c := &conn{
		con:          con,
		r:            iolib.NewUntilReader(eofReader{con}),
		enc:          http.NewResponseEncoder(con, http.EncodeOptions{ServerName: opts.ServerName}),
		dispatcher:   dispatcher,
		clock:        clock,
		logger:       logger,
		opts:         opts,
		shuttingDown: shuttingDown,
	}
	c.parser = http.NewHeadParser(http.NewLineReader(c.r, c.armRead), clock, opts.parseOptions())

	return c
}

// eofReader reports a closed transport as [io.EOF].
type eofReader struct{ r io.Reader }

func (er eofReader) Read(p []byte) (int, error) {
	n, err := er.r.Read(p)
	if errors.Is(err, transport.ErrConnClosed) {
		err = io.EOF
	}
	return n, err
}

func (c *conn) State() State       { return State(c.state.Load()) }
func (c *conn) setState(s State)   { c.state.Store(int32(s)) }
func (c *conn) remoteAddr() string { return c.con.RemoteAddr().String() }

func (c *conn) serve(ctx context.Context) {
	c.logger.Info("connected")

	defer func() {
		c.setState(StateClosed)
		c.logger.Debug("closing")
		if err := c.con.Close(); err != nil {
			c.logger.Error("error when closing connection", "error", err)
		}
	}()

	for {
		c.setState(StateAwaitingHead)
		if c.shuttingDown.Load() {
			return
		}

		head, err := c.parser.Parse(c.remoteAddr())
		if err != nil {
			c.handleHeadError(err)
			return
		}

		c.logger.Info("req", "method", head.Method, "uri", head.URI)

		c.setState(StateReadingBody)
		body, err := c.readBody(head)
		if err != nil {
			c.handleBodyError(head, err)
			return
		}

		c.setState(StateDispatching)
		hctx := NewHandleContext(ctx, c.con.RemoteAddr(), c.logger)
		response, err := hctx.dispatch(c.dispatcher, http.NewRequest(head, body))
		if err != nil {
			c.logError("dispatch", err)
			c.writeError(head.Method, c.toStatusError(err, status.InternalServerError))
			return
		}

		c.setState(StateWritingResponse)
		closing := head.ConnectionClose || wantsClose(response) || c.shuttingDown.Load()
		if err := c.writeResponse(head.Method, response, closing); err != nil {
			c.logger.Info("write failed", "error", err)
			return
		}

		if closing {
			return
		}
	}
}

// handleHeadError answers what can still be answered. A peer that left
// or went idle before sending anything gets no response.
func (c *conn) handleHeadError(err error) {
	if errors.Is(err, io.EOF) {
		c.logger.Debug("peer closed")
		return
	}

	var readErr *http.ReadError
	if errors.As(err, &readErr) {
		if readErr.Idle {
			c.logger.Info("idle", "error", readErr.Err)
			return
		}
		if !errors.Is(err, transport.ErrDeadLineExceeded) {
			c.logger.Info("parse_head", "error", err)
			return
		}
	}

	method := ""
	var headErr *http.HeadError
	if errors.As(err, &headErr) {
		method = headErr.Method
	}

	c.logError("parse_head", err)
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-9
	c.writeError(method, c.toStatusError(err, status.BadRequest))
}

func (c *conn) handleBodyError(head *http.RequestHead, err error) {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		c.logger.Info("read_body", "error", err)
		return
	}

	c.logError("read_body", err)
	c.writeError(head.Method, c.toStatusError(err, status.BadRequest))
}

func (c *conn) readBody(head *http.RequestHead) ([]byte, error) {
	if head.ContentLength <= 0 {
		return nil, nil
	}

	c.armRead()
	body, err := iolib.ReadExact(c.r, uint64(head.ContentLength), 0)
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}

	return body, nil
}

func (c *conn) armRead() {
	c.con.SetReadDeadLine(c.deadline(c.opts.ReadTimeout))
}

func (c *conn) deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return c.clock.Now().Add(timeout)
}

func wantsClose(response *http.Response) bool {
	v, _ := response.Headers.Get("Connection")
	return v == "close"
}

func (c *conn) writeResponse(method string, response *http.Response, closing bool) error {
	defer response.Close()

	c.con.SetWriteDeadLine(c.deadline(c.opts.WriteTimeout))

	n, err := c.enc.Encode(response, http.ResponseMeta{
		Method: method,
		// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-6.6.1-6
		Date:  c.clock.Now(),
		Close: closing,
	})
	if err != nil {
		return errors.Wrap(err, "writing response")
	}

	c.logger.Info("responded", "status", response.Status.Code, "bytes", n)
	return nil
}

// writeError sends an error response on a best-effort basis; the
// connection closes afterwards regardless.
func (c *conn) writeError(method string, se status.Error) {
	c.setState(StateWritingResponse)
	if err := c.writeResponse(method, http.ErrorResponse(se, method), true); err != nil {
		c.logger.Debug("writing error response failed", "error", err)
	}
}

// toStatusError converts error into [status.Error].
// Errors without a status of their own get fallback.
func (c *conn) toStatusError(err error, fallback status.Status) status.Error {
	var se status.Error
	if errors.As(err, &se) {
		return se
	}

	if errors.Is(err, transport.ErrDeadLineExceeded) {
		return status.NewError(err, status.RequestTimeout)
	}

	se = status.NewError(err, fallback)
	if c.opts.Debug {
		se.Reason = err.Error()
	}
	return se
}

func (c *conn) logError(event string, err error) {
	var se status.Error
	switch {
	case c.opts.Debug:
		c.logger.Error(event, "error", fmt.Sprintf("%+v", err))
	case errors.As(err, &se) && se.Status != status.InternalServerError:
		c.logger.Info(event, "status", se.Status.Code, "error", err)
	case errors.Is(err, transport.ErrDeadLineExceeded):
		c.logger.Info(event, "error", err)
	default:
		c.logger.Error(event, "error", err)
	}
}
