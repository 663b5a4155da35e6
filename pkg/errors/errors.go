package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details interface{}            `json:"details,omitempty"`
	Extra   map[string]interface{} `json:"-"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so sentinel comparisons survive WithDetails and Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WithDetails returns a copy carrying caller-facing details.
func (e *Error) WithDetails(details interface{}) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// WithExtra returns a copy with additional top-level response fields.
func (e *Error) WithExtra(extra map[string]interface{}) *Error {
	clone := *e
	clone.Extra = extra
	return &clone
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "Unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "Invalid input")
	ErrRateLimited  = New("RATE_LIMITED", http.StatusTooManyRequests, "Rate limit exceeded")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrOrganizationNotFound = New("NOT_FOUND", http.StatusNotFound, "User organization not found")
	ErrLeadNotFound         = New("NOT_FOUND", http.StatusNotFound, "Lead not found")
	ErrExportNotFound       = New("NOT_FOUND", http.StatusNotFound, "Export not found")
	ErrScopeMissing         = New("SCOPE_MISSING", http.StatusBadRequest, "No scope found. Generate claim draft first.")
	ErrInvalidScope         = New("INVALID_SCOPE", http.StatusBadRequest, "Invalid scope")
	ErrExportFailed         = New("EXPORT_FAILED", http.StatusInternalServerError, "Failed to export estimate")
	ErrDownloadExpired      = New("NOT_FOUND", http.StatusNotFound, "Download link invalid or expired")

	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}
