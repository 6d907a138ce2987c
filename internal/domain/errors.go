package domain

import "errors"

var (
	// ErrConflict indicates a uniqueness violation, e.g. a taken username.
	ErrConflict = errors.New("already exists")
	// ErrNotFound indicates a missing resource, or one the caller does not own.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input that could not be coerced.
	ErrValidation = errors.New("invalid input")
)
