package http

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
	MethodPatch   = "PATCH"
)

var knownMethods = map[string]struct{}{
	MethodGet:     {},
	MethodHead:    {},
	MethodPost:    {},
	MethodPut:     {},
	MethodDelete:  {},
	MethodConnect: {},
	MethodOptions: {},
	MethodTrace:   {},
	MethodPatch:   {},
}

// IsKnownMethod reports whether method is one of the methods above.
// Matching is case-sensitive.
func IsKnownMethod(method string) bool {
	_, ok := knownMethods[method]
	return ok
}

// isRefusedMethod reports methods that are recognized but never served.
func isRefusedMethod(method string) bool {
	return method == MethodConnect || method == MethodTrace
}
