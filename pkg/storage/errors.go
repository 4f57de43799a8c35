package storage

import "errors"

// Sentinel errors for workspace store operations.
var (
	// ErrNotFound is returned when a file record does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrConflict is returned when a file already exists at the given path.
	ErrConflict = errors.New("file already exists")
)
