// Package errors provides code-carrying errors for the deed forms service.
// Every failure surfaced to a caller carries one of the closed set of codes
// below; the HTTP layer maps codes to status codes with HTTPStatus.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced through the external contract.
const (
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeStagePreconditionUnmet = "STAGE_PRECONDITION_UNMET"
	ErrCodeAllStagesComplete      = "ALL_STAGES_COMPLETE"
	ErrCodeFormLocked             = "FORM_LOCKED"
	ErrCodeNoDeliveryMethodSet    = "NO_DELIVERY_METHOD_SET"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeValidation             = "VALIDATION_ERROR"
)

// Infrastructure codes not tied to workflow semantics.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeConflict     = "CONFLICT"
)

// Error is a code-carrying error.
type Error struct {
	Code    string `json:"kind"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error with a code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a code and formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound creates a NOT_FOUND error for a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// InvalidInput creates a VALIDATION_ERROR for a malformed field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Code extracts the code from an error, defaulting to INTERNAL_ERROR for
// errors produced outside this package.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Message extracts the user-facing message from an error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return Code(err) == code
}

// HTTPStatus maps an error code to the HTTP status the external layer returns.
func HTTPStatus(code string) int {
	switch code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidTransition, ErrCodeStagePreconditionUnmet, ErrCodeAllStagesComplete,
		ErrCodeConcurrentModification, ErrCodeConflict, ErrCodeNoDeliveryMethodSet:
		return http.StatusConflict
	case ErrCodeFormLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}
