package web

import (
	"io"
	"mime"
	"testing"
	"testing/fstest"
	"time"

	"http1d/application/http"
	"http1d/application/http/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xyproto/randomstring"
)

type FileAppTestSuite struct {
	suite.Suite

	modTime time.Time
	payload string
	app     *FileApp
}

func TestFileAppTestSuite(t *testing.T) {
	suite.Run(t, new(FileAppTestSuite))
}

func (s *FileAppTestSuite) SetupTest() {
	s.modTime = time.Date(2024, time.March, 1, 12, 30, 0, 0, time.UTC)
	s.payload = randomstring.HumanFriendlyString(2048)

	s.app = &FileApp{FS: fstest.MapFS{
		"style.css":       {Data: []byte("body {}"), ModTime: s.modTime},
		"data.bin":        {Data: []byte(s.payload), ModTime: s.modTime},
		"about.html":      {Data: []byte("<p>about</p>")},
		"run.sh":          {Data: []byte("echo hi")},
		"docs/index.html": {Data: []byte("<p>docs</p>")},
		"list/b.txt":      {Data: []byte("b")},
		"list/A.txt":      {Data: []byte("a")},
		"list/sub/c.txt":  {Data: []byte("c")},
		"list/a&b.txt":    {Data: []byte("amp")},
		"a..b":            {Data: []byte("dots")},
	}}
}

func (s *FileAppTestSuite) get(uri string) (*http.Response, error) {
	return s.app.Dispatch(handleContext(), newRequest(http.MethodGet, uri, ""))
}

func (s *FileAppTestSuite) readBody(resp *http.Response) string {
	s.Require().NotNil(resp.File)
	defer resp.Close()

	b, err := io.ReadAll(resp.File)
	s.Require().NoError(err)
	return string(b)
}

func (s *FileAppTestSuite) TestServeFile() {
	resp, err := s.get("/style.css")
	s.Require().NoError(err)

	s.Equal(status.OK, resp.Status)
	s.Equal("body {}", s.readBody(resp))

	contentType, _ := resp.Headers.Get("Content-Type")
	s.Equal(mime.TypeByExtension(".css"), contentType)
	lastModified, _ := resp.Headers.Get("Last-Modified")
	s.Equal("Fri, 01 Mar 2024 12:30:00 GMT", lastModified)
}

func (s *FileAppTestSuite) TestContentLengthFromStat() {
	resp, err := s.get("/data.bin")
	s.Require().NoError(err)
	defer resp.Close()

	n, err := resp.ContentLength()
	s.Require().NoError(err)
	s.Equal(int64(len(s.payload)), n)
}

func (s *FileAppTestSuite) TestHead() {
	resp, err := s.app.Dispatch(handleContext(), newRequest(http.MethodHead, "/style.css", ""))
	s.Require().NoError(err)
	s.Equal(status.OK, resp.Status)
	s.NoError(resp.Close())
}

func (s *FileAppTestSuite) TestMethodNotAllowed() {
	_, err := s.app.Dispatch(handleContext(), newRequest(http.MethodPost, "/style.css", "x"))

	se := requireStatus(s.T(), err, status.MethodNotAllowed)
	s.Equal("GET, HEAD", se.Headers["Allow"])
}

func (s *FileAppTestSuite) TestNotFound() {
	for _, uri := range []string{"/missing", "/docs/missing.html", "/style.css/x"} {
		_, err := s.get(uri)
		requireStatus(s.T(), err, status.NotFound)
	}
}

func (s *FileAppTestSuite) TestDotDotForbidden() {
	_, err := s.get("/a..b")
	requireStatus(s.T(), err, status.Forbidden)
}

func (s *FileAppTestSuite) TestDotDotAboveRootIsDropped() {
	resp, err := s.get("/../docs/../style.css")
	s.Require().NoError(err)
	s.Equal("body {}", s.readBody(resp))
}

func (s *FileAppTestSuite) TestDirectoryRedirect() {
	testcases := []struct {
		uri      string
		location string
	}{
		{uri: "/docs", location: "/docs/"},
		{uri: "/docs?lang=en&x=1", location: "/docs/?lang=en&x=1"},
		{uri: "//list/./sub", location: "/list/sub/"},
	}

	for _, tc := range testcases {
		_, err := s.get(tc.uri)
		se := requireStatus(s.T(), err, status.MovedPermanently)
		s.Equal(tc.location, se.Headers["Location"], tc.uri)
	}
}

func (s *FileAppTestSuite) TestDirectoryIndex() {
	resp, err := s.get("/docs/")
	s.Require().NoError(err)
	s.Equal("<p>docs</p>", s.readBody(resp))
}

func (s *FileAppTestSuite) TestDirectoryListing() {
	resp, err := s.get("/list/")
	s.Require().NoError(err)

	s.Nil(resp.File)
	contentType, _ := resp.Headers.Get("Content-Type")
	s.Equal(http.MediaTypeHTML, contentType)
	s.Equal(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8" />
<title>/list/</title>
</head>
<body>
<h1>/list/</h1>
<hr>
<ul>
<li><a href="a&b.txt">a&amp;b.txt</a></li>
<li><a href="A.txt">A.txt</a></li>
<li><a href="b.txt">b.txt</a></li>
<li><a href="sub/">sub/</a></li>
</ul>
<hr>
</body>
</html>
`, string(resp.Body))
}

func (s *FileAppTestSuite) TestRootListing() {
	resp, err := s.get("/")
	s.Require().NoError(err)
	s.Contains(string(resp.Body), `<li><a href="docs/">docs/</a></li>`)
}

func (s *FileAppTestSuite) TestMapBareNamesToHTML() {
	_, err := s.get("/about")
	requireStatus(s.T(), err, status.NotFound)

	s.app.MapBareNamesToHTML = true

	resp, err := s.get("/about")
	s.Require().NoError(err)
	s.Equal("<p>about</p>", s.readBody(resp))

	// Directories still redirect.
	_, err = s.get("/docs")
	requireStatus(s.T(), err, status.MovedPermanently)
}

func TestMediaTypeOf(t *testing.T) {
	testcases := []struct {
		name     string
		expected string
	}{
		{name: "README", expected: "text/plain"},
		{name: "run.sh", expected: "text/plain"},
		{name: "archive.tar.gz", expected: "application/gzip"},
		{name: "ARCHIVE.BZ2", expected: "application/x-bzip2"},
		{name: "x.xz", expected: "application/x-xz"},
		{name: "x.Z", expected: "application/octet-stream"},
		{name: "unknown.nonexistent-ext", expected: "text/plain"},
		{name: "page.html", expected: mime.TypeByExtension(".html")},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MediaTypeOf(tc.name))
		})
	}
}

func TestNormURLPath(t *testing.T) {
	testcases := map[string]string{
		"/":            "/",
		"//":           "/",
		"/a/./b":       "/a/b",
		"/a//b/":       "/a/b/",
		"/a/../../b":   "/b",
		"/a/b/..":      "/a",
		"/a/b/../":     "/a/",
		"/../../etc/x": "/etc/x",
	}

	for in, expected := range testcases {
		require.Equal(t, expected, normURLPath(in), in)
	}
}
