package kafka

import (
	"errors"

	"farmnook-dispatch/internal/apperr"
)

// PermanentError marks a message that will never succeed and must be skipped.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return PermanentError{Err: err}
}

// isPermanent reports whether redelivering the message cannot help.
func isPermanent(err error) bool {
	var pe PermanentError
	return errors.As(err, &pe) ||
		errors.Is(err, apperr.ErrInvalid) ||
		errors.Is(err, apperr.ErrNotFound)
}
