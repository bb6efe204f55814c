package core

import (
	"errors"
	"fmt"
)

// Operation error taxonomy. NotFound deliberately covers both "row does
// not exist" and "row belongs to someone else" so callers cannot probe
// for other users' data.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
)

// ValidationError reports malformed or inconsistent input. It is a
// distinct type so handlers can surface the message verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError or
// one of the core field-level sentinel errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	switch {
	case errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrEmptyEmail),
		errors.Is(err, ErrNameTooLong),
		errors.Is(err, ErrDescriptionLong):
		return true
	}
	return false
}
