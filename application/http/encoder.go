package http

import (
	"io"
	"strconv"
	"time"

	"http1d/application/http/status"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

type EncodeOptions struct {
	// ServerName is sent as the Server field. Empty leaves it out.
	ServerName string
}

// ResponseMeta is what the encoder needs to know about the exchange.
type ResponseMeta struct {
	Method string // Method of the request being answered.
	Date   time.Time
	Close  bool // Announce that the connection closes after this response.
}

// ResponseEncoder writes responses. Each Encode issues one Write for byte
// bodies, or one for the head followed by a copy of the file body.
type ResponseEncoder struct {
	w    io.Writer
	opts EncodeOptions
}

func NewResponseEncoder(w io.Writer, opts EncodeOptions) *ResponseEncoder {
	return &ResponseEncoder{w: w, opts: opts}
}

// Encode returns the number of bytes written.
func (re *ResponseEncoder) Encode(resp *Response, meta ResponseMeta) (int64, error) {
	contentLength, err := resp.ContentLength()
	if err != nil {
		return 0, errors.Wrap(err, "sizing body")
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	st := resp.Status
	if st.ReasonPhrase == "" {
		st, _ = status.FromCode(st.Code)
	}

	bb.B = appendStatusLine(bb.B, st)

	if re.opts.ServerName != "" {
		bb.B = Field{"Server", re.opts.ServerName}.appendText(bb.B)
	}

	// Informational responses may leave out Date.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-6.6.1-8
	if st.Code != status.Continue.Code && st.Code != status.SwitchingProtocols.Code {
		date := meta.Date.UTC().Format(TimeFormat)
		bb.B = Field{"Date", date}.appendText(bb.B)
	}

	if meta.Close {
		bb.B = Field{"Connection", "close"}.appendText(bb.B)
	}

	for _, field := range resp.Headers {
		if isEncoderOwned(field.Name) {
			continue
		}
		bb.B = field.appendText(bb.B)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6-8
	if hasContentLength(st) {
		bb.B = append(bb.B, "Content-Length: "...)
		bb.B = strconv.AppendInt(bb.B, contentLength, 10)
		bb.B = append(bb.B, CRLF...)
	}

	// Write a empty line as all the headers are written.
	bb.B = append(bb.B, CRLF...)

	sendBody := MaySendBody(meta.Method, st) && contentLength > 0
	if sendBody && resp.File == nil {
		bb.B = append(bb.B, resp.Body...)
	}

	n, err := re.w.Write(bb.B)
	written := int64(n)
	if err != nil {
		return written, errors.Wrap(err, "writing response")
	}

	if sendBody && resp.File != nil {
		n, err := io.CopyN(re.w, resp.File, contentLength)
		written += n
		if err != nil {
			return written, errors.Wrap(err, "writing response body")
		}
	}

	return written, nil
}

func appendStatusLine(b []byte, st status.Status) []byte {
	b = append(b, Version11.Text()...)
	b = append(b, SP)
	b = strconv.AppendUint(b, uint64(st.Code), 10)
	b = append(b, SP)
	b = append(b, st.ReasonPhrase...)
	return append(b, CRLF...)
}

func isEncoderOwned(name string) bool {
	switch toCanonicalFieldName(name) {
	case "Content-Length", "Date", "Server", "Connection":
		return true
	}
	return false
}

func hasContentLength(st status.Status) bool {
	return !st.IsInformational() && st.Code != status.NoContent.Code && st.Code != status.NotModified.Code
}

// RequestEncoder writes requests with Content-Length delimited bodies.
type RequestEncoder struct {
	w io.Writer
}

func NewRequestEncoder(w io.Writer) *RequestEncoder {
	return &RequestEncoder{w: w}
}

func (re *RequestEncoder) Encode(req *Request) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	bb.B = append(bb.B, req.Method...)
	bb.B = append(bb.B, SP)
	bb.B = append(bb.B, req.URI...)
	bb.B = append(bb.B, SP)
	bb.B = append(bb.B, Version11.Text()...)
	bb.B = append(bb.B, CRLF...)

	for _, field := range req.Headers {
		if toCanonicalFieldName(field.Name) == "Content-Length" {
			continue
		}
		bb.B = field.appendText(bb.B)
	}

	if len(req.Body) > 0 || req.Method == MethodPost || req.Method == MethodPut || req.Method == MethodPatch {
		bb.B = append(bb.B, "Content-Length: "...)
		bb.B = strconv.AppendInt(bb.B, int64(len(req.Body)), 10)
		bb.B = append(bb.B, CRLF...)
	}

	bb.B = append(bb.B, CRLF...)
	bb.B = append(bb.B, req.Body...)

	if _, err := re.w.Write(bb.B); err != nil {
		return errors.Wrap(err, "writing request")
	}
	return nil
}
