// Package opserr defines the error taxonomy shared by all opsbox operations.
//
// Components wrap one of the sentinel errors below with fmt.Errorf("...: %w")
// and the HTTP gateway maps the sentinel to a status code with HTTPStatus.
// Every wrapped message must carry enough context (paths attempted, exit
// codes) for operator diagnosis.
package opserr

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput marks malformed, empty, or disallowed request content.
	// The client's fault: maps to 400.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks a missing or broken required directory.
	// The operator's fault: maps to 500.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks an absent target file. Maps to 404.
	ErrNotFound = errors.New("not found")

	// ErrTimeout marks a subprocess that exceeded its wall-clock bound.
	// Maps to 504.
	ErrTimeout = errors.New("timeout")

	// ErrExecution marks an I/O or subprocess failure at runtime. Maps to 500.
	ErrExecution = errors.New("execution error")
)

// MetricStatus maps a taxonomy error to its metric status label.
func MetricStatus(err error) string {
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return "error"
}

// HTTPStatus maps a taxonomy error to its HTTP status code.
// Errors outside the taxonomy map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrExecution):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
