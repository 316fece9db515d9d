// Package apperror defines the error taxonomy shared by the services and the
// HTTP layer. Services return *AppError values; handlers map the wrapped
// sentinel to a status code with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken and ErrUsernameTaken are both conflicts, so
	// errors.Is(err, ErrConflict) holds for either of them.
	ErrEmailTaken    = fmt.Errorf("email taken: %w", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("username taken: %w", ErrConflict)

	// ErrCorruptRecord marks durable-storage contents that failed to decode.
	// It is recovered from locally and never reaches an API client.
	ErrCorruptRecord = errors.New("corrupt persisted record")
)

type AppError struct {
	Err     error  // sentinel from the list above
	Message string // human-readable message, safe to show the user
	Field   string // optional: input field causing the error
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

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized is returned when an operation needs an active session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredentials is the single login failure. It deliberately does not
// say whether the email or the password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid email or password",
	}
}

func EmailTaken(email string) *AppError {
	return &AppError{
		Err:     ErrEmailTaken,
		Message: "User with this email already exists",
		Field:   "email",
	}
}

func UsernameTaken(username string) *AppError {
	return &AppError{
		Err:     ErrUsernameTaken,
		Message: fmt.Sprintf("Username %q is already taken", username),
		Field:   "username",
	}
}

// CorruptRecord wraps a decode failure for the storage key it came from.
func CorruptRecord(key string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrCorruptRecord, cause),
		Message: fmt.Sprintf("stored record %s is unreadable", key),
	}
}
