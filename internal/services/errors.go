// Package services holds the error taxonomy shared by the remote API clients.
package services

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is a network failure or a non-2xx status on a read call.
type TransportError struct {
	Op     string
	Status int // zero when the request never got a response
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a response body that does not parse into the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// APIError is a write the remote platform rejected. Status and body are kept
// verbatim for diagnostics.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Op, e.Status, e.Body)
}

// IntegrityError is a 2xx write whose response lacks the written entity.
type IntegrityError struct {
	Op     string
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Status
	}
	return 0
}

// IsUnprocessable checks if the remote rejected the write with 422.
func IsUnprocessable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity
}

func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func IsDecode(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

func IsIntegrity(err error) bool {
	var integrityErr *IntegrityError
	return errors.As(err, &integrityErr)
}
