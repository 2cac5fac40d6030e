package server

import (
	"context"
	"log/slog"

	"http1d/application/http"
	"http1d/transport"

	"github.com/pkg/errors"
)

// Dispatcher turns a complete request into a response.
//
// A returned status.Error is rendered as an error page with its own
// status; any other error becomes 500 Internal Server Error. Either way
// the connection closes after the error response.
//
// Dispatch sees only requests with a Host header, a supported method and
// exactly Content-Length bytes of body.
type Dispatcher interface {
	Dispatch(c *HandleContext, request *http.Request) (*http.Response, error)
}

type DispatchFunc func(c *HandleContext, request *http.Request) (*http.Response, error)

func (f DispatchFunc) Dispatch(c *HandleContext, request *http.Request) (*http.Response, error) {
	return f(c, request)
}

type HandleContext struct {
	ctx context.Context

	remoteAddr transport.Addr
	logger     *slog.Logger
}

// NewHandleContext builds the context a connection passes to its
// dispatcher, for running a Dispatcher outside a server.
func NewHandleContext(ctx context.Context, remoteAddr transport.Addr, logger *slog.Logger) *HandleContext {
	return &HandleContext{ctx: ctx, remoteAddr: remoteAddr, logger: logger}
}

func (c *HandleContext) Context() context.Context   { return c.ctx }
func (c *HandleContext) RemoteAddr() transport.Addr { return c.remoteAddr }
func (c *HandleContext) Logger() *slog.Logger       { return c.logger }

var errNilResponse = errors.New("dispatcher returned neither response nor error")

func (c *HandleContext) dispatch(d Dispatcher, request *http.Request) (res *http.Response, err error) {
	defer func() {
		if e := recover(); e != nil {
			res, err = nil, errors.Errorf("dispatcher panicked: %v", e)
		}
	}()

	res, err = d.Dispatch(c, request)
	if err == nil && res == nil {
		return nil, errNilResponse
	}

	return res, err
}
