package errors

import (
	"errors"
	"net/http"
)

// Sentinel error kinds for the load lifecycle and its collaborators
var (
	ErrAuthorization     = errors.New("not authorized for this operation")
	ErrInvalidTransition = errors.New("invalid load status transition")
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource conflict")
	ErrDispatchDegraded  = errors.New("notification dispatch degraded")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInternal          = errors.New("internal error")
)

// AppError is a structured application error with HTTP mapping and context
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying sentinel
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext attaches additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates an AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Context:    make(map[string]interface{}),
	}
}

// IsRetryable reports whether the caller may safely retry the operation
// with the same arguments.
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrStoreUnavailable)
}

// IsDispatchDegraded reports whether the state change committed but one or
// more notification side effects failed.
func IsDispatchDegraded(err error) bool {
	return errors.Is(err, ErrDispatchDegraded)
}

// StatusCode returns the HTTP status an error maps to, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	return http.StatusInternalServerError
}

// NewAuthorizationError creates an authorization error. Never retried;
// surfaced to the user verbatim.
func NewAuthorizationError(message string) *AppError {
	return NewAppError(ErrAuthorization, message, http.StatusForbidden, false)
}

// NewInvalidTransitionError creates an invalid transition error. Covers both
// a plain illegal request and a lost compare-and-set race.
func NewInvalidTransitionError(message string) *AppError {
	return NewAppError(ErrInvalidTransition, message, http.StatusConflict, false)
}

// NewValidationError creates a validation error. Fails before any store write.
func NewValidationError(message string) *AppError {
	return NewAppError(ErrValidation, message, http.StatusBadRequest, false)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, false)
}

// NewDispatchDegradedError marks a committed state change whose notification
// fan-out partially failed. Maps to 200 so callers never mistake it for a
// failed transition.
func NewDispatchDegradedError(message string) *AppError {
	return NewAppError(ErrDispatchDegraded, message, http.StatusOK, false)
}

// NewStoreUnavailableError creates a transient store error. Retryable: the
// conditional update is idempotent with respect to the predecessor check.
func NewStoreUnavailableError(message string) *AppError {
	return NewAppError(ErrStoreUnavailable, message, http.StatusServiceUnavailable, true)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, true)
}
