// Package errs contains the error taxonomy shared by the repository, service and
// transport layers. Layer-specific errors wrap these sentinels so that callers can
// classify failures with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a missing or malformed input field.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate indicates a unique constraint violation (email, category name).
	ErrDuplicate = errors.New("already exists")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation conflicts with the current state of the entity.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates a missing, invalid or expired credential.
	ErrUnauthorized = errors.New("unauthorized")

	ErrImageTooLarge     = errors.New("image should be less than 10MB in size")
	ErrImageUploadFailed = errors.New("image upload failed")
	ErrImageDeleteFailed = errors.New("image delete failed")
)

// Authentication failures. All of them classify as ErrUnauthorized.
var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("token expired: %w", ErrUnauthorized)
)

// ErrWrongPassword is returned when a password change supplies the wrong
// current password. It classifies as ErrValidation.
var ErrWrongPassword = NewValidation("currentPassword", "current password is incorrect")

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidation builds a ValidationError for field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

type kindError struct {
	kind    error
	message string
}

// Wrap returns an error with its own message that classifies as kind.
func Wrap(kind error, message string) error {
	return &kindError{kind: kind, message: message}
}

func (e *kindError) Error() string { return e.message }

func (e *kindError) Unwrap() error { return e.kind }
