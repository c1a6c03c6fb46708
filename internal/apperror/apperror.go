package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the dashboard can hit.
// Handlers branch on these with errors.Is to pick a response:
//
//	ErrUnauthorized → redirect to /login
//	ErrUnavailable  → keep the stale cache, show a generic flash
//	ErrBackend      → surface the backend's detail message verbatim
//	ErrValidation   → re-render the form, no network call was made
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("backend unavailable")
	ErrBackend      = errors.New("backend rejected request")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized signals a missing or rejected session token. Handlers treat
// it as "redirect to the login surface", never as a fatal page error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable wraps a transport-level failure reaching the backend: the
// request never produced an HTTP status. Callers fall back to whatever
// previous-known-good state they hold.
func Unavailable(err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrUnavailable, err),
		Message: "unable to reach the CodeVault server",
	}
}

// Backend wraps a non-2xx backend response. detail is the backend-provided
// message when present ("Username or email already exists", ...); it is
// surfaced to the user verbatim, with a generic fallback otherwise.
func Backend(detail string) *AppError {
	if detail == "" {
		detail = "the request was rejected"
	}
	return &AppError{
		Err:     ErrBackend,
		Message: detail,
	}
}
