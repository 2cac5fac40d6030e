package status

import (
	"fmt"
)

// Error is a failure that maps onto a response status.
// Reason is shown to the client, the cause is kept for logging only.
type Error struct {
	cause  error
	Status Status
	Reason string

	// Headers are extra response fields, e.g. Location or Allow.
	Headers map[string]string
}

func NewError(err error, status Status) Error {
	return Error{cause: err, Status: status}
}

// Errorf creates an Error with a formatted reason and no cause.
func Errorf(status Status, format string, args ...any) Error {
	return Error{Status: status, Reason: fmt.Sprintf(format, args...)}
}

// WithHeader returns a copy of e carrying one more response field.
func (e Error) WithHeader(key, value string) Error {
	headers := make(map[string]string, len(e.Headers)+1)
	for k, v := range e.Headers {
		headers[k] = v
	}
	headers[key] = value
	e.Headers = headers
	return e
}

func (e Error) WithReason(reason string) Error {
	e.Reason = reason
	return e
}

func (e Error) Error() string {
	cause := e.Reason
	if e.cause != nil {
		if cause != "" {
			cause += ": "
		}
		cause += e.cause.Error()
	}

	return fmt.Sprintf(
		"%d %s: %q", e.Status.Code, e.Status.ReasonPhrase, cause,
	)
}

// Message is the text shown to the client: the reason if set,
// the status reason phrase otherwise.
func (e Error) Message() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Status.ReasonPhrase
}

func (e Error) Cause() error  { return e.cause }
func (e Error) Unwrap() error { return e.cause }
