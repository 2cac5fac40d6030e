package http

import (
	"net/url"
	"testing"

	"http1d/application/http/status"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(method, uri string, headers Headers, body string) *Request {
	return NewRequest(&RequestHead{
		Method:        method,
		URI:           uri,
		Version:       Version11,
		Headers:       append(Headers{{Name: "Host", Value: "h"}}, headers...),
		ContentLength: int64(len(body)),
	}, []byte(body))
}

func TestRequestPath(t *testing.T) {
	testcases := []struct {
		uri       string
		path      string
		parts     []string
		rawQuery  string
		wantError bool
	}{
		{uri: "/", path: "/", parts: []string{}},
		{uri: "/a/b", path: "/a/b", parts: []string{"a", "b"}},
		{uri: "/a/b/", path: "/a/b/", parts: []string{"a", "b"}},
		{uri: "/x%20y?q=1", path: "/x y", parts: []string{"x y"}, rawQuery: "q=1"},
		{uri: "/%zz", wantError: true},
	}

	for _, tc := range testcases {
		t.Run(tc.uri, func(t *testing.T) {
			req := newTestRequest(MethodGet, tc.uri, nil, "")

			path, err := req.Path()
			if tc.wantError {
				var statusErr status.Error
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, status.BadRequest, statusErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.path, path)

			parts, err := req.PathParts()
			require.NoError(t, err)
			assert.Equal(t, tc.parts, parts)

			assert.Equal(t, tc.rawQuery, req.RawQuery())
		})
	}
}

func TestRequestQuery(t *testing.T) {
	req := newTestRequest(MethodGet, "/search?q=go+lang&tag=a&tag=b", nil, "")

	q, err := req.Query()
	require.NoError(t, err)
	assert.Equal(t, url.Values{"q": {"go lang"}, "tag": {"a", "b"}}, q)
}

func TestRequestPostParams(t *testing.T) {
	testcases := []struct {
		desc        string
		contentType string
		body        string
		expected    url.Values
		wantStatus  *status.Status
	}{
		{
			desc:        "urlencoded",
			contentType: "application/x-www-form-urlencoded",
			body:        "name=gopher&n=1&n=2",
			expected:    url.Values{"name": {"gopher"}, "n": {"1", "2"}},
		},
		{
			desc:        "urlencoded with charset",
			contentType: "application/x-www-form-urlencoded; charset=utf-8",
			body:        "a=%C3%A9",
			expected:    url.Values{"a": {"é"}},
		},
		{
			desc:        "unsupported type",
			contentType: "application/json",
			body:        "{}",
			wantStatus:  &status.UnsupportedMediaType,
		},
		{
			desc:       "missing type",
			body:       "a=1",
			wantStatus: &status.BadRequest,
		},
		{
			desc:        "malformed body",
			contentType: "application/x-www-form-urlencoded",
			body:        "a=%zz",
			wantStatus:  &status.BadRequest,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			var headers Headers
			if tc.contentType != "" {
				headers.Set("Content-Type", tc.contentType)
			}
			req := newTestRequest(MethodPost, "/", headers, tc.body)

			params, err := req.PostParams()
			if tc.wantStatus != nil {
				var statusErr status.Error
				require.True(t, errors.As(err, &statusErr), "got %v", err)
				assert.Equal(t, *tc.wantStatus, statusErr.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, params)
		})
	}
}

func TestRequestAllowMethods(t *testing.T) {
	req := newTestRequest(MethodPost, "/", nil, "")
	assert.NoError(t, req.AllowMethods(MethodGet, MethodPost))

	err := req.AllowMethods(MethodGet, MethodHead)

	var statusErr status.Error
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, status.MethodNotAllowed, statusErr.Status)
	assert.Equal(t, "GET, HEAD", statusErr.Headers["Allow"])
}
