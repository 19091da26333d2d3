package studio

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the studio and its HTTP surface.
var (
	// ErrValidation marks a request the caller got wrong.
	ErrValidation = errors.New("validation failed")

	// ErrPrecondition marks an operation attempted before its
	// prerequisites are in place (no source loaded, no transcoder).
	ErrPrecondition = errors.New("precondition not met")

	// ErrBusy marks an operation rejected because a batch run is active.
	ErrBusy = errors.New("queue is busy")

	// ErrNotFound marks a lookup of a segment or clip that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedBackup marks an import document missing required sections.
	ErrMalformedBackup = errors.New("malformed backup document")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func preconditionErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
