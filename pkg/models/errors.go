package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed or out-of-range point and hazard data
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoPathFound marks endpoints that lie in different connected components
	ErrNoPathFound = errors.New("no path found")

	// ErrDegenerateNormalization marks a min/max range with zero width
	ErrDegenerateNormalization = errors.New("degenerate normalization")
)

// InputError describes which value of which point was rejected
type InputError struct {
	PointID string
	Field   string
	Reason  string
}

func (e *InputError) Error() string {
	if e.PointID == "" {
		return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: point %q: %s: %s", e.PointID, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// NoPathError reports the endpoints of a failed search
type NoPathError struct {
	Start string
	End   string
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path found between %q and %q", e.Start, e.End)
}

func (e *NoPathError) Unwrap() error { return ErrNoPathFound }

// Invalid is a shorthand for building an InputError
func Invalid(pointID, field, format string, args ...any) error {
	return &InputError{PointID: pointID, Field: field, Reason: fmt.Sprintf(format, args...)}
}
