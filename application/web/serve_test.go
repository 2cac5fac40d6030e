package web

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"testing"
	"testing/fstest"

	"http1d/application/http"
	"http1d/application/http/actor/client"
	"http1d/application/http/actor/server"
	"http1d/application/http/status"
	"http1d/transport/pipe"

	"github.com/benbjohnson/clock"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/suite"
	"github.com/xyproto/randomstring"
	"go.uber.org/goleak"
)

// ServeTestSuite runs the handlers behind a real server.
type ServeTestSuite struct {
	suite.Suite

	page   string
	server *server.Server
	conn   *client.Conn
}

func TestServeTestSuite(t *testing.T) {
	suite.Run(t, new(ServeTestSuite))
}

func (s *ServeTestSuite) SetupTest() {
	clk := clock.NewMock()
	tr := pipe.NewNetwork(clk)
	addr := pipe.Addr{Name: "web"}

	lis, err := tr.Listen(addr)
	s.Require().NoError(err)

	s.page = randomstring.HumanFriendlyString(3000)
	app := &App{
		Handler: &Compress{Handler: &FileApp{FS: fstest.MapFS{
			"index.html": {Data: []byte(s.page)},
			"docs/a.txt": {Data: []byte("a")},
		}}},
		PreventCaching: true,
	}

	logger := slog.New(slog.DiscardHandler)
	s.server = server.New(lis, logger, clk, app, server.DefaultOptions())
	s.server.Start()

	s.conn, err = client.Dial(context.Background(), tr, addr, logger, clk, client.Options{Decode: http.DefaultDecodeOptions})
	s.Require().NoError(err)
}

func (s *ServeTestSuite) TearDownTest() {
	s.NoError(s.conn.Close())
	s.NoError(s.server.Close())
	goleak.VerifyNone(s.T())
}

func get(uri string, headers ...http.Field) *http.Request {
	return http.NewRequest(&http.RequestHead{Method: http.MethodGet, URI: uri, Headers: headers}, nil)
}

func (s *ServeTestSuite) TestFileOverTheWire() {
	res, err := s.conn.Do(context.Background(), get("/"))
	s.Require().NoError(err)

	s.Equal(status.OK, res.Status)
	s.Equal(s.page, string(res.Body))

	length, _ := res.Headers.Get("Content-Length")
	s.Equal(strconv.Itoa(len(s.page)), length)
	cc, _ := res.Headers.Get("Cache-Control")
	s.Equal("no-cache, no-store, must-revalidate", cc)
	s.False(s.conn.Closed())
}

func (s *ServeTestSuite) TestListingCompressed() {
	res, err := s.conn.Do(context.Background(), get("/docs/", http.Field{Name: "Accept-Encoding", Value: "zstd"}))
	s.Require().NoError(err)

	// Below the minimum size, so sent as is.
	s.False(res.Headers.Has("Content-Encoding"))
	s.Contains(string(res.Body), `<a href="a.txt">a.txt</a>`)
}

func (s *ServeTestSuite) TestEchoCompressed() {
	s.Require().NoError(s.conn.Close())
	s.Require().NoError(s.server.Close())

	clk := clock.NewMock()
	tr := pipe.NewNetwork(clk)
	addr := pipe.Addr{Name: "echo"}
	lis, err := tr.Listen(addr)
	s.Require().NoError(err)

	logger := slog.New(slog.DiscardHandler)
	s.server = server.New(lis, logger, clk, &Compress{Handler: EchoApp{}}, server.DefaultOptions())
	s.server.Start()
	s.conn, err = client.Dial(context.Background(), tr, addr, logger, clk, client.Options{Decode: http.DefaultDecodeOptions})
	s.Require().NoError(err)

	body := bytes.Repeat([]byte("echo "), 400)
	req := http.NewRequest(&http.RequestHead{
		Method:  http.MethodPut,
		URI:     "/",
		Headers: http.Headers{{Name: "Accept-Encoding", Value: "zstd"}},
	}, body)

	res, err := s.conn.Do(context.Background(), req)
	s.Require().NoError(err)

	coding, _ := res.Headers.Get("Content-Encoding")
	s.Require().Equal(EncodingZstd, coding)

	dec, err := zstd.NewReader(nil)
	s.Require().NoError(err)
	defer dec.Close()

	plain, err := dec.DecodeAll(res.Body, nil)
	s.Require().NoError(err)
	s.Contains(string(plain), "method: PUT\n")
	s.Contains(string(plain), `"echo echo `)
}

func (s *ServeTestSuite) TestRedirectClosesConnection() {
	res, err := s.conn.Do(context.Background(), get("/docs?x=1"))
	s.Require().NoError(err)

	s.Equal(status.MovedPermanently, res.Status)
	location, _ := res.Headers.Get("Location")
	s.Equal("/docs/?x=1", location)
	s.True(s.conn.Closed())
}
