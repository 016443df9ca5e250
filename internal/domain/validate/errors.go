package validate

import (
	"errors"
	"fmt"
)

// ErrNotAssigned rejects judges or participants that are not part of the
// unit. Callers can test for it with errors.Is.
var ErrNotAssigned = errors.New("not assigned to unit")

// Error is a structured validation rejection returned to the submitting
// client. It is always produced before any write happens.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewError builds a field-level validation error.
func NewError(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

// AsError extracts a *Error from err if present.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
