package outreach

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing record or one owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a lead that could not be created or merged.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate is returned by stores on a uniqueness violation.
	// The registry resolves it and never surfaces it to callers.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotRecorded accompanies a delivered email whose ledger entries
	// could not all be written. The outcome is still returned.
	ErrNotRecorded = errors.New("email sent but not fully recorded")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func required(field string) error {
	return &ValidationError{Field: field}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
