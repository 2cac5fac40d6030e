// Package http implements the HTTP/1.1 message layer of the server:
// request head parsing, request and response models, and their encoders.
//
// Only Content-Length delimited bodies are supported. Chunked transfer
// coding, protocol upgrades and 100-continue are refused.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
