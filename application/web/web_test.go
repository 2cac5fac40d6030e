package web

import (
	"context"
	"log/slog"
	"strconv"
	"testing"

	"http1d/application/http"
	"http1d/application/http/actor/server"
	"http1d/application/http/status"
	"http1d/transport/pipe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleContext() *server.HandleContext {
	return server.NewHandleContext(context.Background(), pipe.Addr{Name: "client"}, slog.New(slog.DiscardHandler))
}

func newRequest(method, uri string, body string, headers ...http.Field) *http.Request {
	head := &http.RequestHead{
		Client:        "client",
		Method:        method,
		URI:           uri,
		Version:       http.Version11,
		Headers:       append(http.Headers{{Name: "Host", Value: "example.com"}}, headers...),
		ContentLength: -1,
	}
	if body != "" {
		head.ContentLength = int64(len(body))
		head.Headers.Add("Content-Length", strconv.Itoa(len(body)))
	}
	return http.NewRequest(head, []byte(body))
}

func requireStatus(t *testing.T, err error, want status.Status) status.Error {
	t.Helper()

	var se status.Error
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, want, se.Status)
	return se
}

func fixedResponse(body string) server.Dispatcher {
	return server.DispatchFunc(func(*server.HandleContext, *http.Request) (*http.Response, error) {
		return http.NewResponse(status.OK, http.Headers{{Name: "Content-Type", Value: http.MediaTypeText}}, []byte(body))
	})
}

func TestAppWithoutHandler(t *testing.T) {
	app := &App{}

	resp, err := app.Dispatch(handleContext(), newRequest(http.MethodGet, "/", ""))
	assert.Nil(t, resp)
	requireStatus(t, err, status.NotImplemented)
}

func TestAppPreventCaching(t *testing.T) {
	testcases := []struct {
		method  string
		noCache bool
	}{
		{method: http.MethodGet, noCache: true},
		{method: http.MethodHead, noCache: true},
		{method: http.MethodPost, noCache: true},
		{method: http.MethodPut, noCache: false},
		{method: http.MethodDelete, noCache: false},
	}

	for _, tc := range testcases {
		t.Run(tc.method, func(t *testing.T) {
			app := &App{Handler: fixedResponse("hi"), PreventCaching: true}

			resp, err := app.Dispatch(handleContext(), newRequest(tc.method, "/", ""))
			require.NoError(t, err)

			cc, ok := resp.Headers.Get("Cache-Control")
			assert.Equal(t, tc.noCache, ok)
			if tc.noCache {
				assert.Equal(t, "no-cache, no-store, must-revalidate", cc)
				assert.Equal(t, []string{"no-cache"}, resp.Headers.Values("Pragma"))
				assert.Equal(t, []string{"0"}, resp.Headers.Values("Expires"))
			}
		})
	}
}

func TestAppPassesErrorsThrough(t *testing.T) {
	app := &App{
		Handler: server.DispatchFunc(func(*server.HandleContext, *http.Request) (*http.Response, error) {
			return nil, status.NewError(nil, status.Conflict)
		}),
		PreventCaching: true,
	}

	_, err := app.Dispatch(handleContext(), newRequest(http.MethodGet, "/", ""))
	requireStatus(t, err, status.Conflict)
}

func TestEchoApp(t *testing.T) {
	resp, err := EchoApp{}.Dispatch(handleContext(), newRequest(http.MethodPut, "/echo?x=1", "line one\nline two"))
	require.NoError(t, err)

	assert.Equal(t, status.OK, resp.Status)
	contentType, _ := resp.Headers.Get("Content-Type")
	assert.Equal(t, http.MediaTypeText, contentType)

	assert.Equal(t, `EchoApp response:
client: client
method: PUT
uri: /echo?x=1
version: HTTP/1.1
headers:
  Host: "example.com"
  Content-Length: "17"

body:
"line one"
"line two"
`, string(resp.Body))
}

func TestEchoAppPostParams(t *testing.T) {
	req := newRequest(http.MethodPost, "/", "b=2&a=1",
		http.Field{Name: "Content-Type", Value: "application/x-www-form-urlencoded"})

	resp, err := EchoApp{}.Dispatch(handleContext(), req)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "\nbody:\n\"a\" : \"1\"\n\"b\" : \"2\"\n")
}

func TestEchoAppRejectsUnknownForm(t *testing.T) {
	req := newRequest(http.MethodPost, "/", "{}",
		http.Field{Name: "Content-Type", Value: "application/json"})

	_, err := EchoApp{}.Dispatch(handleContext(), req)
	requireStatus(t, err, status.UnsupportedMediaType)
}

func TestEchoAppWithoutBody(t *testing.T) {
	resp, err := EchoApp{}.Dispatch(handleContext(), newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.NotContains(t, string(resp.Body), "body:")
}
