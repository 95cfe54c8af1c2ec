package apperr

import (
	"errors"
	"fmt"
)

// Sentinels for the error taxonomy. Wrap them, then match with errors.Is.
var (
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrDependency = errors.New("dependency failure")
)

func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Dependency keeps the cause in the chain alongside ErrDependency.
func Dependency(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependency, op, cause)
}
