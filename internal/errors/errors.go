package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session manager
var (
	// Session errors
	ErrNoSession      = errors.New("no session")
	ErrPartialSession = errors.New("access and refresh tokens must be set together")
	ErrSessionChanged = errors.New("stored session changed")

	// Storage errors
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	ErrAllBackendsFailed  = errors.New("no storage backend accepted the write")

	// Transport errors
	ErrMissingBaseURL = errors.New("base url is required")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, discarding nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
