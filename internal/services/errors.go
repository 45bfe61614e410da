package services

import (
	"errors"
	"fmt"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrFileNotFound = errors.New("file not found")
	ErrUserNotFound = errors.New("user not found")

	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid file status transition")

	ErrUnreadableDocument  = errors.New("unreadable document")
	ErrMalformedTable      = errors.New("malformed table")
	ErrUnsupportedFileType = errors.New("unsupported file type")

	ErrModelUnavailable = errors.New("AI service temporarily unavailable")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
