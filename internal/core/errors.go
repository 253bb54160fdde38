package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField       = errors.New("missing field")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidContributor = errors.New("invalid contributor")

	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrStoreUnavailable    = errors.New("store unavailable")

	ErrDenied   = errors.New("sign-in required")
	ErrNotFound = errors.New("not found")
)

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MissingField builds the validation error for an absent or blank field.
func MissingField(field string) error {
	return &ValidationError{Field: field, Err: ErrMissingField}
}

// IsValidation reports whether err was produced by record validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
