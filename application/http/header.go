package http

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// Field is a single header line. Name is in canonical form when it was
// added through [Headers] or parsed off the wire.
type Field struct{ Name, Value string }

// parseField splits a field line on its first colon.
func parseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", fieldLine)
	}

	// Whitespace between field name and colon makes the name an invalid token.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if !httpguts.ValidHeaderFieldName(string(name)) {
		return Field{}, errors.Errorf("invalid field name: %q", name)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(OWS))
	if !httpguts.ValidHeaderFieldValue(string(value)) {
		return Field{}, errors.Errorf("invalid value for field %q", name)
	}

	return Field{Name: toCanonicalFieldName(string(name)), Value: string(value)}, nil
}

func (f Field) appendText(b []byte) []byte {
	b = append(b, f.Name...)
	b = append(b, ':', SP)
	b = append(b, f.Value...)
	return append(b, CRLF...)
}

// Headers keeps fields in insertion order, duplicates included.
// Lookups are case-insensitive.
type Headers []Field

// Get assumes the field is a singleton field and returns its first value.
// For list-based field, use [Headers.Values].
func (h Headers) Get(key string) (value string, ok bool) {
	key = toCanonicalFieldName(key)
	for _, f := range h {
		if f.Name == key {
			return f.Value, true
		}
	}
	return "", false
}

func (h Headers) Values(key string) []string {
	key = toCanonicalFieldName(key)

	var values []string
	for _, f := range h {
		if f.Name == key {
			values = append(values, f.Value)
		}
	}
	return values
}

func (h Headers) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Set assumes the field is a singleton field.
// It replaces every existing value instead of appending to it.
// For list-based field, use [Headers.Add].
func (h *Headers) Set(key, value string) {
	key = toCanonicalFieldName(key)
	for i, f := range *h {
		if f.Name == key {
			(*h)[i].Value = value
			*h = append((*h)[:i+1], (*h)[i+1:].without(key)...)
			return
		}
	}
	*h = append(*h, Field{Name: key, Value: value})
}

func (h *Headers) Add(key, value string) {
	*h = append(*h, Field{Name: toCanonicalFieldName(key), Value: value})
}

func (h *Headers) Del(key string) {
	*h = h.without(toCanonicalFieldName(key))
}

func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// without filters in place; key must be canonical.
func (h Headers) without(key string) Headers {
	filtered := h[:0]
	for _, f := range h {
		if f.Name != key {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// CanonicalFieldName returns the title-cased form of a field name,
// e.g. "content-length" becomes "Content-Length".
func CanonicalFieldName(s string) string { return toCanonicalFieldName(s) }

// This only works for valid token.
func toCanonicalFieldName(s string) string {
	if !httpguts.ValidHeaderFieldName(s) {
		return s
	}

	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}
