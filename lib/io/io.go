package iolib

import (
	"bytes"
	"io"
)

// ReadExact reads exactly n bytes from r. The buffer starts at most
// initialCap bytes large and grows as data actually arrives, so an
// advertised length is never allocated up front.
//
// A source that ends early yields [io.ErrUnexpectedEOF] along with the
// bytes read so far, unless it reported a more specific error.
func ReadExact(r io.Reader, n uint64, initialCap int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	if initialCap <= 0 || uint64(initialCap) > n {
		initialCap = int(min(n, 1<<16))
	}

	buf := bytes.NewBuffer(make([]byte, 0, initialCap))
	written, err := io.CopyN(buf, r, int64(n))
	if uint64(written) < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return buf.Bytes(), err
	}

	return buf.Bytes(), nil
}
