package http

import (
	"fmt"
	"html"
	"io/fs"

	"http1d/application/http/status"

	"github.com/pkg/errors"
)

// Response is a complete response. Body and File are mutually exclusive;
// a File is sized with Stat and streamed when written.
//
// Content-Length, Date, Server and Connection are owned by the encoder and
// are ignored when present in Headers.
type Response struct {
	Status  status.Status
	Headers Headers

	Body []byte
	File fs.File
}

var ErrBodyNotAllowed = errors.New("response status does not allow a body")

// NewResponse fails when body is not empty but the status forbids one.
func NewResponse(st status.Status, headers Headers, body []byte) (*Response, error) {
	if len(body) > 0 && !st.AllowsBody() {
		return nil, errors.Wrapf(ErrBodyNotAllowed, "status %d", st.Code)
	}
	return &Response{Status: st, Headers: headers, Body: body}, nil
}

func NewFileResponse(st status.Status, headers Headers, f fs.File) (*Response, error) {
	if !st.AllowsBody() {
		return nil, errors.Wrapf(ErrBodyNotAllowed, "status %d", st.Code)
	}
	return &Response{Status: st, Headers: headers, File: f}, nil
}

// ContentLength is the length of the body, whether or not it is sent.
func (r *Response) ContentLength() (int64, error) {
	if r.File == nil {
		return int64(len(r.Body)), nil
	}

	info, err := r.File.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat response file")
	}
	return info.Size(), nil
}

// Close releases the file body, if any.
func (r *Response) Close() error {
	if r.File == nil {
		return nil
	}
	return r.File.Close()
}

// MaySendBody reports whether a response with st to a method request may
// carry content on the wire.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc7230#section-3.3
//
// - https://datatracker.ietf.org/doc/html/rfc7231#section-4.3.6
func MaySendBody(method string, st status.Status) bool {
	if method == MethodHead {
		return false
	}
	if method == MethodConnect && st.IsSuccessful() {
		return false
	}
	return st.AllowsBody()
}

const errorHTMLFormat = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Error: %[1]d</title>
</head>
<body>
  <h1>Error: %[1]d</h1>
  <p>%[2]s.</p>
</body>
</html>
`

const (
	MediaTypeHTML  = "text/html;charset=utf-8"
	MediaTypeText  = "text/plain;charset=utf-8"
	errorMediaType = MediaTypeHTML
)

// ErrorResponse renders err as an HTML page. The page is left out when
// method or status rules out a body.
func ErrorResponse(err status.Error, method string) *Response {
	resp := &Response{Status: err.Status}
	for k, v := range err.Headers {
		resp.Headers.Set(k, v)
	}

	if MaySendBody(method, err.Status) {
		// Escaped to keep request-derived reasons from injecting markup.
		reason := html.EscapeString(err.Message())
		resp.Body = fmt.Appendf(nil, errorHTMLFormat, err.Status.Code, reason)
		resp.Headers.Set("Content-Type", errorMediaType)
	}

	return resp
}
