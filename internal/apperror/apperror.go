// Package apperror defines the domain error taxonomy shared by the service and
// handler layers.
//
// Services return these errors; handlers translate them to HTTP status codes in
// one place (handler.writeError). Every AppError wraps exactly one sentinel so
// callers can branch with errors.Is without caring about the message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrUpstream     = errors.New("upstream error")
)

type AppError struct {
	Err     error    // sentinel
	Message string   // Human-readable error message
	Field   string   // Optional: field causing the error
	Details []string // Optional: every violated constraint, for multi-field validation
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

// NotFoundMessage is NotFound with a caller-chosen message ("User not found").
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// ValidationList reports several violated constraints at once. The message is
// the summary shown to the user; details lists each violation.
func ValidationList(message string, details []string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Details: details,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// ConflictMessage is Conflict with a caller-chosen message, for cases where
// the conflicting key must be phrased for the end user ("Email already in use").
func ConflictMessage(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
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

// Unauthorized is returned for missing, invalid or expired credentials.
// Messages must stay generic so they cannot be used to enumerate accounts.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Internal marks a server-side failure the caller cannot fix, such as a
// missing configuration value.
func Internal(message string) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: message,
	}
}

// Upstream marks a failure of an external dependency (the event provider).
// cause is kept in the chain for logging but never shown to clients.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstream, cause),
		Message: message,
	}
}
