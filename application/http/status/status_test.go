package status

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFromCode(t *testing.T) {
	st, ok := FromCode(431)
	assert.True(t, ok)
	assert.Equal(t, HeaderFieldsTooLarge, st)

	st, ok = FromCode(599)
	assert.False(t, ok)
	assert.Equal(t, Status{Code: 599}, st)
}

func TestAllowsBody(t *testing.T) {
	testcases := []struct {
		status   Status
		expected bool
	}{
		{Continue, false},
		{SwitchingProtocols, false},
		{OK, true},
		{NoContent, false},
		{ResetContent, false},
		{NotModified, false},
		{NotFound, true},
		{InternalServerError, true},
	}

	for _, tc := range testcases {
		t.Run(tc.status.String(), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.AllowsBody())
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(cause, InternalServerError)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, InternalServerError.ReasonPhrase, err.Message())
	assert.Equal(t, `500 Internal Server Error: "boom"`, err.Error())

	var target Error
	wrapped := errors.Wrap(Errorf(BadRequest, "missing %s", "Host"), "parsing")
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, BadRequest, target.Status)
	assert.Equal(t, "missing Host", target.Message())
}

func TestErrorWithHeader(t *testing.T) {
	base := Errorf(MovedPermanently, "moved")
	moved := base.WithHeader("Location", "/dir/")

	assert.Nil(t, base.Headers)
	assert.Equal(t, map[string]string{"Location": "/dir/"}, moved.Headers)
}
