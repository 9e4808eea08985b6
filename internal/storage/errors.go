package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by insert-if-absent writes when the key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict is returned when a compare-and-set write observed a different
	// state than expected. Callers re-read and decide whether to retry.
	ErrConflict = errors.New("conditional write conflict")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
