package web

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"http1d/application/http"
	"http1d/application/http/actor/server"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const (
	EncodingGzip = "gzip"
	EncodingZstd = "zstd"

	DefaultCompressMinSize = 1 << 10
)

// Compress encodes the in-memory bodies of Handler's responses with the
// best coding the client accepts. zstd is preferred over gzip. File
// bodies and bodies shorter than MinSize are sent as is.
type Compress struct {
	Handler server.Dispatcher

	// MinSize defaults to DefaultCompressMinSize when zero.
	MinSize int
}

var _ server.Dispatcher = (*Compress)(nil)

var (
	gzipWriters = sync.Pool{
		New: func() any { return gzip.NewWriter(nil) },
	}

	// EncodeAll is safe for concurrent use, so one encoder serves everyone.
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
)

func (cp *Compress) Dispatch(c *server.HandleContext, req *http.Request) (*http.Response, error) {
	resp, err := cp.Handler.Dispatch(c, req)
	if err != nil || resp == nil {
		return resp, err
	}

	minSize := cp.MinSize
	if minSize <= 0 {
		minSize = DefaultCompressMinSize
	}

	if resp.File != nil || len(resp.Body) < minSize || !resp.Status.AllowsBody() ||
		resp.Headers.Has("Content-Encoding") {
		return resp, nil
	}

	accept, _ := req.Headers.Get("Accept-Encoding")
	coding := chooseEncoding(accept)
	if coding == "" {
		return resp, nil
	}

	body, err := encode(coding, resp.Body)
	if err != nil {
		return nil, err
	}

	resp.Body = body
	resp.Headers.Set("Content-Encoding", coding)
	if !varies(resp.Headers, "Accept-Encoding") {
		resp.Headers.Add("Vary", "Accept-Encoding")
	}
	return resp, nil
}

// varies reports whether the Vary fields already name field or "*".
func varies(h http.Headers, field string) bool {
	for _, v := range h.Values("Vary") {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "*" || strings.EqualFold(name, field) {
				return true
			}
		}
	}
	return false
}

func encode(coding string, body []byte) ([]byte, error) {
	switch coding {
	case EncodingZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd encoder")
		}
		return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil

	case EncodingGzip:
		var b bytes.Buffer
		zw := gzipWriters.Get().(*gzip.Writer)
		defer gzipWriters.Put(zw)

		zw.Reset(&b)
		if _, err := zw.Write(body); err != nil {
			return nil, errors.Wrap(err, "gzip body")
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Wrap(err, "gzip body")
		}
		return b.Bytes(), nil
	}

	return nil, errors.Errorf("unsupported content coding %q", coding)
}

// chooseEncoding picks a coding from an Accept-Encoding value. Codings
// with q=0 are refused; "*" accepts both.
func chooseEncoding(accept string) string {
	var gzipOK, zstdOK bool

	for _, item := range strings.Split(accept, ",") {
		coding, params, _ := strings.Cut(item, ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding == "" || !acceptable(params) {
			continue
		}

		switch coding {
		case EncodingGzip, "x-gzip":
			gzipOK = true
		case EncodingZstd:
			zstdOK = true
		case "*":
			gzipOK, zstdOK = true, true
		}
	}

	switch {
	case zstdOK:
		return EncodingZstd
	case gzipOK:
		return EncodingGzip
	}
	return ""
}

func acceptable(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && q > 0
	}
	return true
}
