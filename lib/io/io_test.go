package iolib

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExact(t *testing.T) {
	testcases := []struct {
		desc     string
		src      string
		n        uint64
		expected string
		wantErr  error
	}{
		{desc: "zero", src: "abc", n: 0, expected: ""},
		{desc: "exact", src: "hello", n: 5, expected: "hello"},
		{desc: "leaves the rest", src: "hello world", n: 5, expected: "hello"},
		{desc: "short", src: "hel", n: 5, expected: "hel", wantErr: io.ErrUnexpectedEOF},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := ReadExact(strings.NewReader(tc.src), tc.n, 0)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expected, string(b))
		})
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReadExactKeepsSourceError(t *testing.T) {
	sentinel := io.ErrClosedPipe
	r := io.MultiReader(bytes.NewReader([]byte("ab")), failingReader{sentinel})

	b, err := ReadExact(r, 4, 1)
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, []byte("ab"), b)
}

func TestLimitReader(t *testing.T) {
	r := LimitReader(strings.NewReader("Hello, World!"), 5)

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(b))
}
