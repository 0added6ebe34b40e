package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when the requested record does
// not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError marks input rejected before reaching the store. It is
// surfaced immediately to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
