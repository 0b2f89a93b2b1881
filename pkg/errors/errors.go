// Package errors defines the sentinel errors shared across the search
// service and maps them onto HTTP responses.
package errors

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrUnknownRecordType = errors.New("unknown record type")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrIndexCorrupt      = errors.New("index snapshot corrupt")
	// ErrUnavailable marks a backend that refused or could not take the
	// call, e.g. behind an open circuit breaker.
	ErrUnavailable = errors.New("backend unavailable")
)

// statuses is checked in order; the first match wins.
var statuses = []struct {
	err  error
	code int
}{
	{ErrRecordNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnknownRecordType, http.StatusBadRequest},
	{ErrUnsupportedFormat, http.StatusBadRequest},
	{ErrMalformedRecord, http.StatusUnprocessableEntity},
	{ErrUnavailable, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// StatusCoder lets an error pick its own HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Status maps err to an HTTP status code, defaulting to 500.
func Status(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return http.StatusInternalServerError
}

// Public returns the status for err and a message safe to show clients.
// Server-side failures are reduced to the status text.
func Public(err error) (int, string) {
	code := Status(err)
	if code >= http.StatusInternalServerError {
		return code, http.StatusText(code)
	}
	return code, err.Error()
}
