// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// PersistenceError reports a storage failure that surfaced after parsing
// succeeded. It is the only boundary-crossing error class in the import
// pipeline and is always surfaced to the caller; re-uploading is safe
// because imports are fingerprint-idempotent.
type PersistenceError struct {
	Err error
	Op  string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps a storage failure with the operation that hit it.
func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
