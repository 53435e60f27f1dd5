// Package errors provides coded domain errors shared across the gateway's
// audit log core. Codes travel with the error so the HTTP layer can translate
// them to status codes without inspecting error strings.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	// CodeValidation marks caller input that failed validation. These errors
	// are rejected at the boundary and never reach the store.
	CodeValidation Code = "validation_error"

	// CodeBadRequest marks requests that could not be parsed at all.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks lookups for records that do not exist.
	CodeNotFound Code = "not_found"

	// CodeUnavailable marks storage faults on read paths. Reads have no side
	// effects, so callers may retry.
	CodeUnavailable Code = "storage_unavailable"

	// CodeInternal marks unexpected failures. Details are logged, not returned.
	CodeInternal Code = "internal_error"
)

// GatewayError is an error carrying a Code and a human-readable message.
type GatewayError struct {
	Code    Code
	Message string
	cause   error
}

func (e GatewayError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e GatewayError) Unwrap() error { return e.cause }

// New creates a GatewayError with the given code and message.
func New(code Code, message string) error {
	return GatewayError{Code: code, Message: message}
}

// Newf creates a GatewayError with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return GatewayError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping the cause
// reachable through errors.Unwrap.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return GatewayError{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var gw GatewayError
	for {
		if errors.As(err, &gw) {
			if gw.Code == code {
				return true
			}
			err = gw.cause
			continue
		}
		return false
	}
}

// CodeOf returns the code of the outermost GatewayError in the chain, or
// CodeInternal when err carries no code.
func CodeOf(err error) Code {
	var gw GatewayError
	if errors.As(err, &gw) {
		return gw.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
