package server

import (
	"time"

	"http1d/application/http"
)

type Options struct {
	// ReadTimeout bounds every single read: the request line, each header
	// line and the whole body. Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one response. Zero disables it.
	WriteTimeout time.Duration

	MaxBodySize   uint64
	MaxLineLength uint

	ServerName string

	// Debug exposes error details in responses and logs stack traces.
	Debug bool
}

func DefaultOptions() Options {
	return Options{
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  0,
		MaxBodySize:   http.DefaultParseOptions.MaxBodySize,
		MaxLineLength: http.DefaultParseOptions.MaxLineLength,
		ServerName:    "http1d/0.1",
		Debug:         false,
	}
}

func (o Options) parseOptions() http.ParseOptions {
	return http.ParseOptions{
		MaxLineLength: o.MaxLineLength,
		MaxBodySize:   o.MaxBodySize,
	}
}
