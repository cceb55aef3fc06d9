package mindata

import (
	"fmt"
)

// Error codes exposed at the HTTP boundary.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

// Error is the closed error type used across services. Every error that
// escapes a service carries one of the four codes above; the HTTP boundary
// maps them exhaustively to a status and the {code, message, details,
// timestamp} envelope.
type Error struct {
	Code    string         `json:"code"`
	Status  int            `json:"-"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// NewValidationError reports schema non-conformance or a failed referential
// check performed before any row is written.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Status: 400, Message: message}
}

// NewNotFoundError reports a missing natural key.
func NewNotFoundError(message string) *Error {
	return &Error{Code: CodeNotFound, Status: 404, Message: message}
}

// NewConflictError reports a duplicate natural key on create.
func NewConflictError(message string) *Error {
	return &Error{Code: CodeConflict, Status: 409, Message: message}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Status: 500, Message: message, Cause: cause}
}

// AsError coerces any error to *Error. Errors that are not already tagged
// default to INTERNAL_ERROR, matching the boundary handler contract.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewInternalError("an internal error occurred", err)
}

// IsValidationError reports whether err carries the VALIDATION_ERROR code.
func IsValidationError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeValidation
}

// IsNotFoundError reports whether err carries the NOT_FOUND code.
func IsNotFoundError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeNotFound
}

// IsConflictError reports whether err carries the CONFLICT code.
func IsConflictError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeConflict
}
