// Package apperror defines the typed errors shared by every layer.
//
// Services return these; only the HTTP layer (handler.writeError) decides
// which status code each one becomes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("Validation Error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUpstream          = errors.New("upstream unavailable")
)

// GenericNetworkMessage is what users see when the backend cannot be reached.
// The underlying transport error is logged, never shown.
const GenericNetworkMessage = "Network error. Please try again."

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: lower-level error, kept for logs
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

func Conflict(message string) *AppError {
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

// Unauthorized means there is no logged-in profile (or the OAuth session is
// degraded). HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InsufficientFunds is returned when a purchase is blocked client-side
// because the balance does not cover the price.
func InsufficientFunds(currency string, have, need int) *AppError {
	return &AppError{
		Err:     ErrInsufficientFunds,
		Message: fmt.Sprintf("not enough %s: have %d, need %d", currency, have, need),
		Field:   currency,
	}
}

// Upstream wraps a transport failure talking to the backend. The message is
// always the generic one; cause is only for logging.
func Upstream(cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: GenericNetworkMessage,
		Cause:   cause,
	}
}
