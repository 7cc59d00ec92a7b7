package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no service matches the requested name.
	ErrNotFound = errors.New("service not found")
	// ErrDuplicateName is returned when a name is already taken by another service.
	ErrDuplicateName = errors.New("service with this name already exists")
	// ErrStoreUnavailable wraps any persistence failure that is not a missing record.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports missing or malformed descriptor fields.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid service: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Unavailable wraps err so that errors.Is(err, ErrStoreUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
