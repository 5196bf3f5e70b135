package store

import "errors"

var (
	// ErrNotFound is returned when a document or a named connection doesn't exist.
	ErrNotFound = errors.New("trove: not found")

	// ErrAlreadyExists is returned when registering a connection under a taken name.
	ErrAlreadyExists = errors.New("trove: already exists")

	// ErrInvalidPredicate is returned when a predicate's operator or value cannot be evaluated.
	ErrInvalidPredicate = errors.New("trove: invalid predicate")

	// ErrForeignRef is returned when a batch is given a reference created by another connection.
	ErrForeignRef = errors.New("trove: document reference belongs to another connection")

	// ErrBatchTooLarge is returned when a batch holds more writes than the backend accepts atomically.
	ErrBatchTooLarge = errors.New("trove: batch too large")
)
