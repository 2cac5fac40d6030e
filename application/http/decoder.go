package http

import (
	"bytes"
	"strconv"

	"http1d/application/http/status"
	iolib "http1d/lib/io"

	"github.com/pkg/errors"
)

// DecodeOptions limits what a response may claim. Zero means no limit.
type DecodeOptions struct {
	// MaxLineLength limits the status line and each header line.
	MaxLineLength uint
	MaxBodySize   uint64
}

var DefaultDecodeOptions = DecodeOptions{
	MaxLineLength: 64 << 10,
	MaxBodySize:   1 << 32,
}

var (
	ErrMalformedStatusLine = errors.New("status line is malformed")
	ErrMalformedFieldLine  = errors.New("field line is malformed")
)

// ResponseDecoder reads responses on the client side of a connection.
// Only Content-Length delimited bodies are understood; a response without
// one has an empty body.
type ResponseDecoder struct {
	lr   LineReader
	ur   *iolib.UntilReader
	opts DecodeOptions
}

func NewResponseDecoder(ur *iolib.UntilReader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{lr: NewLineReader(ur, nil), ur: ur, opts: opts}
}

// Decode reads one response to a request with the given method.
func (rd *ResponseDecoder) Decode(method string) (*Response, error) {
	line, err := rd.lr.ReadLine(rd.opts.MaxLineLength)
	if err != nil {
		return nil, errors.Wrap(err, "reading status line")
	}

	st, err := parseStatusLine(line)
	if err != nil {
		return nil, errors.Wrap(err, "parsing status line")
	}

	resp := &Response{Status: st}
	contentLength := int64(0)

	for {
		line, err := rd.lr.ReadLine(rd.opts.MaxLineLength)
		if err != nil {
			return nil, errors.Wrap(err, "reading field line")
		}

		if len(line) == 0 {
			break
		}

		field, err := parseField(line)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedFieldLine, err.Error())
		}

		if field.Name == "Content-Length" {
			n, err := strconv.ParseUint(field.Value, 10, 63)
			if err != nil || (rd.opts.MaxBodySize > 0 && n > rd.opts.MaxBodySize) {
				return nil, errors.Errorf("invalid content length: %q", field.Value)
			}
			contentLength = int64(n)
		}

		resp.Headers = append(resp.Headers, field)
	}

	if !MaySendBody(method, st) {
		return resp, nil
	}

	body, err := iolib.ReadExact(rd.ur, uint64(contentLength), 0)
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}
	resp.Body = body

	return resp, nil
}

func parseStatusLine(line []byte) (status.Status, error) {
	parts := bytes.SplitN(line, []byte{SP}, 3)
	if len(parts) < 2 {
		return status.Status{}, ErrMalformedStatusLine
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return status.Status{}, errors.Wrap(err, "parsing version")
	}
	if ver[0] != 1 {
		return status.Status{}, errors.Errorf("unsupported version: %s", ver)
	}

	statusCodeStr := string(parts[1])
	statusCode, err := strconv.ParseUint(statusCodeStr, 10, 64)
	if err != nil || len(statusCodeStr) != 3 {
		return status.Status{}, errors.Errorf("status code is malformed: %q", statusCodeStr)
	}

	// reason-phrase is optional.
	reasonPhrase := ""
	if len(parts) == 3 {
		reasonPhrase = string(parts[2])
	}

	return status.Status{Code: uint(statusCode), ReasonPhrase: reasonPhrase}, nil
}
