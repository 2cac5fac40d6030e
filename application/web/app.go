// Package web holds the request handlers the server is run with.
package web

import (
	"http1d/application/http"
	"http1d/application/http/actor/server"
	"http1d/application/http/status"
)

// App applies site wide response policy around Handler. Without a Handler
// every request is answered with 501 Not Implemented.
type App struct {
	Handler server.Dispatcher

	// PreventCaching marks responses to HEAD, GET and POST as not cacheable.
	PreventCaching bool
}

var _ server.Dispatcher = (*App)(nil)

func (a *App) Dispatch(c *server.HandleContext, req *http.Request) (*http.Response, error) {
	if a.Handler == nil {
		return nil, status.NewError(nil, status.NotImplemented)
	}

	resp, err := a.Handler.Dispatch(c, req)
	if err != nil || resp == nil {
		return resp, err
	}

	if a.PreventCaching {
		switch req.Method {
		case http.MethodHead, http.MethodGet, http.MethodPost:
			resp.Headers.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			resp.Headers.Set("Pragma", "no-cache")
			resp.Headers.Set("Expires", "0")
		}
	}

	return resp, nil
}
