package http

import (
	"mime"
	"net/url"
	"strings"
	"sync"

	"http1d/application/http/status"

	"github.com/pkg/errors"
)

// Request is a parsed head together with its complete body.
// Body holds exactly ContentLength bytes.
type Request struct {
	*RequestHead
	Body []byte

	urlOnce sync.Once
	url     *url.URL
	urlErr  error
}

func NewRequest(head *RequestHead, body []byte) *Request {
	return &Request{RequestHead: head, Body: body}
}

func (r *Request) parseURL() (*url.URL, error) {
	r.urlOnce.Do(func() {
		r.url, r.urlErr = url.ParseRequestURI(r.URI)
		if r.urlErr != nil {
			r.urlErr = status.NewError(r.urlErr, status.BadRequest).WithReason("Malformed request target")
		}
	})
	return r.url, r.urlErr
}

// Path returns the decoded path of the request target.
func (r *Request) Path() (string, error) {
	u, err := r.parseURL()
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

// RawQuery returns the undecoded query string, without the '?'.
func (r *Request) RawQuery() string {
	u, err := r.parseURL()
	if err != nil {
		return ""
	}
	return u.RawQuery
}

// PathParts splits the path on slashes, dropping the leading empty part
// and a trailing empty one. "/" has no parts.
func (r *Request) PathParts() ([]string, error) {
	p, err := r.Path()
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(p, "/") {
		return nil, status.Errorf(status.BadRequest, "Path is not absolute")
	}

	parts := strings.Split(p[1:], "/")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts, nil
}

func (r *Request) Query() (url.Values, error) {
	u, err := r.parseURL()
	if err != nil {
		return nil, err
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, status.NewError(err, status.BadRequest).WithReason("Malformed query")
	}
	return q, nil
}

// PostParams decodes an application/x-www-form-urlencoded body.
// Other content types are rejected.
func (r *Request) PostParams() (url.Values, error) {
	contentType, _ := r.Headers.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, status.NewError(err, status.BadRequest).
			WithReason("Invalid Content-Type header")
	}

	if mediaType != "application/x-www-form-urlencoded" {
		return nil, status.Errorf(status.UnsupportedMediaType, "Unsupported Content-Type: %q", mediaType)
	}

	params, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return nil, status.NewError(errors.Wrap(err, "parsing form"), status.BadRequest).
			WithReason("Failed to decode urlencoded form")
	}
	return params, nil
}

// AllowMethods fails with 405 unless the request uses one of methods.
func (r *Request) AllowMethods(methods ...string) error {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return status.NewError(nil, status.MethodNotAllowed).
		WithHeader("Allow", strings.Join(methods, ", "))
}
