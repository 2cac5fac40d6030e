package http

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"http1d/application/http/status"
	iolib "http1d/lib/io"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// RequestHead is the request line plus headers of one request.
// It is never modified once [HeadParser.Parse] returns it.
type RequestHead struct {
	Client    string    // Peer address.
	Timestamp time.Time // When the request line arrived.

	Method  string
	URI     string // Raw request-target, not decoded.
	Version Version

	// Headers in arrival order with canonical names. Duplicates are kept.
	Headers Headers

	ConnectionClose bool
	// ContentLength is -1 when the request has no Content-Length.
	ContentLength int64
}

// LineReader reads CRLF terminated lines.
type LineReader interface {
	// ReadLine returns the next line without its terminator. On failure it
	// returns the bytes read so far along with the error, which is
	// [iolib.ErrLimitExceeded] when limit bytes went by without a CRLF.
	ReadLine(limit uint) ([]byte, error)
}

type lineReader struct {
	ur     *iolib.UntilReader
	before func()
}

// NewLineReader reads lines off ur. before, when not nil, runs ahead of
// every line read so each read can be bounded individually.
func NewLineReader(ur *iolib.UntilReader, before func()) LineReader {
	return &lineReader{ur: ur, before: before}
}

func (lr *lineReader) ReadLine(limit uint) ([]byte, error) {
	if lr.before != nil {
		lr.before()
	}

	b, err := lr.ur.ReadUntilLimit(CRLF, limit)
	if err != nil {
		return b, err
	}
	return b[:len(b)-len(CRLF)], nil
}

type ParseOptions struct {
	// MaxLineLength limits the request line and each header line,
	// terminator included. Zero means no limit.
	MaxLineLength uint

	// MaxBodySize is the largest Content-Length accepted.
	MaxBodySize uint64
}

var DefaultParseOptions = ParseOptions{
	MaxLineLength: 64 << 10,
	MaxBodySize:   1 << 32,
}

// ReadError reports a transport failure while reading a head.
// Idle is set when nothing of the request had arrived yet.
type ReadError struct {
	Err  error
	Idle bool
}

func (e *ReadError) Error() string { return "reading head: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// HeadError is a failure found after the request line was accepted.
// Method tells the caller whether an error response may carry a body.
type HeadError struct {
	Method string
	Err    error
}

func (e *HeadError) Error() string { return e.Method + " request: " + e.Err.Error() }
func (e *HeadError) Unwrap() error { return e.Err }

// HeadParser reads and validates request heads.
//
// Parse results are one of:
//
//   - a head and a nil error;
//   - [io.EOF] when the peer finished before sending a request;
//   - a [status.Error] for malformed or unsupported input;
//   - a [*ReadError] for any other read failure.
//
// Failures past the request line are wrapped in a [*HeadError].
type HeadParser struct {
	lr    LineReader
	clock clock.Clock
	opts  ParseOptions
}

func NewHeadParser(lr LineReader, clock clock.Clock, opts ParseOptions) *HeadParser {
	return &HeadParser{lr: lr, clock: clock, opts: opts}
}

func (hp *HeadParser) Parse(client string) (*RequestHead, error) {
	line, err := hp.readRequestLine()
	if err != nil {
		return nil, err
	}

	head := &RequestHead{
		Client:        client,
		Timestamp:     hp.clock.Now(),
		ContentLength: -1,
	}

	if err := parseRequestLine(line, head); err != nil {
		return nil, err
	}

	if err := hp.parseHeaders(head); err != nil {
		return nil, &HeadError{Method: head.Method, Err: err}
	}

	return head, nil
}

func (hp *HeadParser) readRequestLine() ([]byte, error) {
	for {
		line, err := hp.lr.ReadLine(hp.opts.MaxLineLength)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// Closing mid request line is still a graceful close.
				return nil, io.EOF
			case errors.Is(err, iolib.ErrLimitExceeded):
				return nil, status.Errorf(status.RequestURITooLong, "Request line too long")
			}
			return nil, &ReadError{Err: err, Idle: len(line) == 0}
		}

		// An empty line can be received before message.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
		if len(line) > 0 {
			return line, nil
		}
	}
}

func parseRequestLine(line []byte, head *RequestHead) error {
	parts := bytes.Split(line, []byte{SP})
	if len(parts) != 3 {
		return status.Errorf(status.BadRequest, "Malformed request line")
	}

	// The version goes first, so an alien protocol is rejected as such
	// before its method is judged.
	ver, err := parseRequestVersion(string(parts[2]))
	if err != nil {
		return err
	}

	method := string(parts[0])
	if !IsKnownMethod(method) {
		return status.Errorf(status.BadRequest, "Unrecognized method")
	}
	if isRefusedMethod(method) {
		return status.Errorf(status.MethodNotAllowed, "%s not supported", method)
	}

	target := string(parts[1])
	if len(target) == 0 {
		return status.Errorf(status.BadRequest, "Empty request target")
	}

	head.Method, head.URI, head.Version = method, target, ver
	return nil
}

func parseRequestVersion(text string) (Version, error) {
	const prefix = "HTTP/"
	if len(text) < len(prefix) || text[:len(prefix)] != prefix {
		return Version{}, status.Errorf(status.BadRequest, "Unsupported protocol")
	}

	text = text[len(prefix):]
	if len(text) < 2 || text[:2] != "1." {
		return Version{}, status.Errorf(status.BadRequest, "Unsupported HTTP major version")
	}
	if text[2:] != "1" {
		return Version{}, status.Errorf(status.BadRequest, "Unsupported HTTP minor version")
	}

	return Version11, nil
}

func (hp *HeadParser) parseHeaders(head *RequestHead) error {
	headers := make(Headers, 0, 8)
	hasHost := false

	for {
		line, err := hp.lr.ReadLine(hp.opts.MaxLineLength)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return status.Errorf(status.BadRequest, "No terminating empty line")
			case errors.Is(err, iolib.ErrLimitExceeded):
				return status.Errorf(status.HeaderFieldsTooLarge, "Header line too long")
			}
			return &ReadError{Err: err}
		}

		if len(line) == 0 {
			// An empty line. This means that there are no more headers.
			break
		}

		field, err := parseField(line)
		if err != nil {
			return status.NewError(err, status.BadRequest).WithReason("Malformed header")
		}

		switch field.Name {
		case "Host":
			hasHost = true
		case "Connection":
			head.ConnectionClose = field.Value == "close"
		case "Content-Length":
			if err := hp.applyContentLength(head, field.Value); err != nil {
				return err
			}
		case "Expect":
			// 100-continue is the only expectation defined, and it is not served.
			return status.Errorf(status.ExpectationFailed, "Expectation not supported: %s", field.Value)
		case "Transfer-Encoding":
			return status.Errorf(status.NotImplemented, "Transfer-Encoding not supported")
		case "Upgrade":
			return status.Errorf(status.NotImplemented, "Upgrade not supported")
		}

		headers = append(headers, field)
	}

	if !hasHost {
		return status.Errorf(status.BadRequest, "Missing Host header")
	}

	head.Headers = headers
	return nil
}

// Identical duplicates are tolerated, differing ones are not.
func (hp *HeadParser) applyContentLength(head *RequestHead, value string) error {
	for _, c := range []byte(value) {
		if c < '0' || '9' < c {
			return status.Errorf(status.BadRequest, "Invalid Content-Length")
		}
	}

	n, err := strconv.ParseUint(value, 10, 63)
	if err != nil {
		return status.NewError(err, status.BadRequest).WithReason("Invalid Content-Length")
	}
	if n > hp.opts.MaxBodySize {
		return status.Errorf(status.BadRequest, "Content-Length exceeds maximum body size")
	}

	if head.ContentLength >= 0 && uint64(head.ContentLength) != n {
		return status.Errorf(status.BadRequest, "Conflicting Content-Length headers")
	}

	head.ContentLength = int64(n)
	return nil
}
