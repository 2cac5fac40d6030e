package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"http1d/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Server accepts connections from a listener and serves each one on its
// own goroutine.
type Server struct {
	l transport.ConnListener

	stopAccepting context.CancelFunc
	acceptDone    chan struct{}

	// Context of dispatchers; canceled on forced close.
	connCtx    context.Context
	cancelConn context.CancelFunc

	conns        *xsync.MapOf[*conn, struct{}]
	shuttingDown atomic.Bool
	wg           sync.WaitGroup

	logger *slog.Logger
	opts   Options

	dispatcher Dispatcher
	clock      clock.Clock
}

func New(
	l transport.ConnListener,
	logger *slog.Logger,
	clock clock.Clock,
	dispatcher Dispatcher,
	opts Options,
) *Server {
	connCtx, cancelConn := context.WithCancel(context.Background())

	return &Server{
		l:          l,
		acceptDone: make(chan struct{}),
		connCtx:    connCtx,
		cancelConn: cancelConn,
		conns:      xsync.NewMapOf[*conn, struct{}](),
		logger:     logger,
		opts:       opts,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

func (s *Server) Addr() transport.Addr { return s.l.Addr() }

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopAccepting = cancel

	go func() {
		defer close(s.acceptDone)
		for {
			con, err := s.l.Accept(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, transport.ErrConnListenerClosed) {
					s.logger.Error(
						"unexpected error when accepting connection",
						"error", err.Error(),
					)
				}
				return
			}

			c := newConn(
				con,
				s.dispatcher,
				s.clock,
				s.logger.With("conn", con.RemoteAddr().String()),
				&s.shuttingDown,
				s.opts,
			)
			s.conns.Store(c, struct{}{})

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.conns.Delete(c)
				c.serve(s.connCtx)
			}()
		}
	}()
}

// Close stops accepting and closes every connection at once.
func (s *Server) Close() error {
	s.shuttingDown.Store(true)
	err := s.closeListener()

	s.cancelConn()
	s.closeConns(func(*conn) bool { return true })
	s.wg.Wait()

	return err
}

// Shutdown stops accepting, closes idle connections and lets in-flight
// requests finish; their responses announce Connection: close. When ctx
// ends first, the remaining connections are closed and ctx's error is
// returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	if err := s.closeListener(); err != nil {
		s.logger.Error("error when closing listener", "error", err)
	}

	s.closeConns(func(c *conn) bool { return c.State() == StateAwaitingHead })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelConn()
		return nil
	case <-ctx.Done():
		s.cancelConn()
		s.closeConns(func(*conn) bool { return true })
		<-done
		return ctx.Err()
	}
}

// ConnStates counts the tracked connections per state.
func (s *Server) ConnStates() map[State]int {
	states := make(map[State]int)
	s.conns.Range(func(c *conn, _ struct{}) bool {
		states[c.State()]++
		return true
	})
	return states
}

func (s *Server) closeListener() error {
	if s.stopAccepting != nil {
		s.stopAccepting()
		<-s.acceptDone
	}

	if err := s.l.Close(); err != nil && !errors.Is(err, transport.ErrConnListenerClosed) {
		return errors.Wrap(err, "closing listener")
	}
	return nil
}

func (s *Server) closeConns(match func(*conn) bool) {
	s.conns.Range(func(c *conn, _ struct{}) bool {
		if match(c) {
			if err := c.con.Close(); err != nil {
				s.logger.Debug("error when closing connection", "error", err)
			}
		}
		return true
	})
}
