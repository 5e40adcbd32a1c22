package geobase

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Caller errors
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("document not found")
	ErrNotModified  = errors.New("update modified no documents")
	ErrMissingField = errors.New("document is missing key field")

	// Store errors
	ErrConnection   = errors.New("document store unreachable")
	ErrStorage      = errors.New("document store operation failed")
	ErrConflict     = errors.New("concurrent modification detected")
	ErrUnauthorized = errors.New("unauthorized access")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// storageError classifies a backend failure on a live connection.
// The returned error matches both ErrStorage and the original cause.
func storageError(op, collection string, cause error) error {
	if cause == nil {
		return nil
	}
	return WithContext(fmt.Errorf("%w: %w", ErrStorage, cause), map[string]interface{}{
		"op":         op,
		"collection": collection,
	})
}

// IsValidation reports whether err was caused by bad caller input, including bad configuration
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidConfig)
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConnection checks if the store could not be reached
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsStorage checks if an operation failed on a live connection
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsConflict checks if an error is a conflict/concurrent modification error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPermanent checks if an error is permanent (not worth retrying)
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidConfig)
}
