package iolib

import (
	"bytes"
	"errors"
	"io"
)

// UntilReader reads delimiter-terminated chunks (e.g. CRLF lines) from r
// while keeping the bytes it over-read for subsequent calls, so it can be
// interleaved with plain Reads of a message body.
type UntilReader struct {
	r io.Reader

	buf *bytes.Buffer
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r, buf: bytes.NewBuffer(nil)}
}

func (ur *UntilReader) Read(p []byte) (n int, err error) {
	if ur.buf.Len() > 0 {
		n, err = ur.buf.Read(p)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}

	return ur.r.Read(p)
}

// Buffered returns the number of bytes read ahead of the last delimiter.
func (ur *UntilReader) Buffered() int { return ur.buf.Len() }

var (
	ErrZeroLenDelim  = errors.New("delim has zero length")
	ErrLimitExceeded = errors.New("delim not found within limit")
)

// ReadUntil reads until delim and returns everything up to and including it.
// When the underlying reader fails first, the bytes read so far are returned
// together with its error.
func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	sum := 0
	temp := make([]byte, 1024)
	lastByte := delim[len(delim)-1]

	r := ur.r
	if ur.buf.Len() > 0 {
		// Serve read-ahead bytes first, then continue with the source.
		r = io.MultiReader(
			bytes.NewReader(bytes.Clone(ur.buf.Bytes())),
			ur.r,
		)
		ur.buf.Reset()
	}

	for {
		n, err := r.Read(temp)
		ur.buf.Write(temp[:n])

		// Only positions of the delimiter's last byte can complete a match.
		for seek := temp[:n]; ; {
			idx := bytes.IndexByte(seek, lastByte)
			if idx < 0 {
				break
			}

			foundIdx := sum + n - len(seek) + idx

			buffered := ur.buf.Bytes()[:foundIdx+1]
			if bytes.HasSuffix(buffered, delim) {
				buffered = bytes.Clone(buffered)
				ur.buf.Reset()
				ur.buf.Write(seek[idx+1:])
				return buffered, nil
			}

			seek = seek[idx+1:]
		}

		sum += n

		if err != nil {
			b := bytes.Clone(ur.buf.Bytes())
			ur.buf.Reset()
			return b, err
		}
	}
}

// ReadUntilLimit is ReadUntil that gives up with [ErrLimitExceeded] once limit
// bytes were pulled from the source without seeing delim. A zero limit means
// no limit. Read-ahead bytes from a previous call do not count.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint) ([]byte, error) {
	if limit == 0 {
		return ur.ReadUntil(delim)
	}

	r := ur.r
	lr := &LimitedReader{R: r, N: limit}
	ur.r = lr
	defer func() { ur.r = r }() // restore underlying reader.

	b, err := ur.ReadUntil(delim)
	if err == io.EOF && lr.N == 0 {
		return b, ErrLimitExceeded
	}
	return b, err
}
