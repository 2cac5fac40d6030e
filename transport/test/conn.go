// Package test holds behaviour shared by every [transport.Conn]
// implementation, as a suite to embed.
package test

import (
	"bytes"
	"io"
	"time"

	"http1d/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// ConnTestSuite runs against a connected pair. Embedders call SetupTest
// and then set C1 and C2 so that bytes written on one are read on the other.
type ConnTestSuite struct {
	suite.Suite

	C1, C2 transport.Conn
	Clock  clock.Clock
}

func (s *ConnTestSuite) SetupTest() {
	s.Clock = clock.New()
}

func (s *ConnTestSuite) TearDownTest() {
	s.NoError(s.C1.Close())
	s.NoError(s.C2.Close())
	goleak.VerifyNone(s.T())
}

// async runs f in the background; the returned channel yields its error.
func async(f func() error) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- f() }()
	return errc
}

// within fails the test when errc stays silent for a second.
func (s *ConnTestSuite) within(errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	case <-time.After(time.Second):
		s.FailNow("operation did not finish")
		return nil
	}
}

func (s *ConnTestSuite) write(c transport.Conn, p []byte) <-chan error {
	return async(func() error {
		n, err := c.Write(p)
		if err == nil && n != len(p) {
			return io.ErrShortWrite
		}
		return err
	})
}

func (s *ConnTestSuite) TestShortReads() {
	msg := []byte("GET / HTTP/1.1\r\n")
	sent := s.write(s.C1, msg)

	got := make([]byte, len(msg))
	_, err := io.ReadFull(s.C2, got[:5])
	s.Require().NoError(err)
	_, err = io.ReadFull(s.C2, got[5:])
	s.Require().NoError(err)

	s.NoError(s.within(sent))
	s.Equal(msg, got)
}

func (s *ConnTestSuite) TestBothDirections() {
	toC2 := s.write(s.C1, []byte("request"))
	b := make([]byte, 16)
	n, err := s.C2.Read(b)
	s.Require().NoError(err)
	s.Equal("request", string(b[:n]))
	s.NoError(s.within(toC2))

	toC1 := s.write(s.C2, []byte("response"))
	n, err = s.C1.Read(b)
	s.Require().NoError(err)
	s.Equal("response", string(b[:n]))
	s.NoError(s.within(toC1))
}

func (s *ConnTestSuite) TestConcurrentWritesDoNotInterleave() {
	const writers = 8
	chunk := []byte("0123456789")

	written := make([]<-chan error, writers)
	for i := range writers {
		written[i] = s.write(s.C1, chunk)
	}

	got := make([]byte, writers*len(chunk))
	_, err := io.ReadFull(s.C2, got)
	s.Require().NoError(err)
	for _, w := range written {
		s.NoError(s.within(w))
	}

	s.Equal(bytes.Repeat(chunk, writers), got)
}

func (s *ConnTestSuite) TestClosedEndFails() {
	s.Require().NoError(s.C1.Close())
	s.NoError(s.C1.Close())

	for _, c := range []transport.Conn{s.C1, s.C2} {
		n, err := c.Read(make([]byte, 4))
		s.Zero(n)
		s.ErrorIs(err, transport.ErrConnClosed)

		n, err = c.Write([]byte("late"))
		s.Zero(n)
		s.ErrorIs(err, transport.ErrConnClosed)
	}
}

func (s *ConnTestSuite) TestCloseUnblocksRead() {
	blocked := async(func() error {
		_, err := s.C1.Read(make([]byte, 1))
		return err
	})

	time.Sleep(20 * time.Millisecond)
	s.Require().NoError(s.C2.Close())
	s.ErrorIs(s.within(blocked), transport.ErrConnClosed)
}

func (s *ConnTestSuite) TestCloseUnblocksWrite() {
	blocked := s.write(s.C1, []byte("nobody reads this"))

	time.Sleep(20 * time.Millisecond)
	s.Require().NoError(s.C1.Close())
	s.ErrorIs(s.within(blocked), transport.ErrConnClosed)
}

func (s *ConnTestSuite) TestDeadlines() {
	past := s.Clock.Now().Add(-time.Second)

	s.C1.SetReadDeadLine(past)
	n, err := s.C1.Read(make([]byte, 1))
	s.Zero(n)
	s.ErrorIs(err, transport.ErrDeadLineExceeded)

	s.C1.SetWriteDeadLine(past)
	n, err = s.C1.Write([]byte("x"))
	s.Zero(n)
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
}

func (s *ConnTestSuite) TestDeadlineFiresWhileBlocked() {
	s.C1.SetReadDeadLine(s.Clock.Now().Add(20 * time.Millisecond))

	_, err := s.C1.Read(make([]byte, 1))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
}

func (s *ConnTestSuite) TestClearedDeadline() {
	s.C1.SetReadDeadLine(s.Clock.Now().Add(-time.Second))
	s.C1.SetReadDeadLine(time.Time{})

	sent := s.write(s.C2, []byte("x"))
	b := make([]byte, 1)
	n, err := s.C1.Read(b)
	s.Require().NoError(err)
	s.Equal("x", string(b[:n]))
	s.NoError(s.within(sent))
}

func (s *ConnTestSuite) TestAddresses() {
	s.Equal(s.C1.LocalAddr().String(), s.C2.RemoteAddr().String())
	s.Equal(s.C2.LocalAddr().String(), s.C1.RemoteAddr().String())
}
