package repository

import "errors"

var (
	// ErrInvalidFormat is returned when data or updates are not a structured record.
	ErrInvalidFormat = errors.New("trove: invalid format")

	// ErrMismatchedLengths is returned when CreateBatch gets a different number of uids and records.
	ErrMismatchedLengths = errors.New("trove: mismatched lengths")

	// ErrBatchTooLarge is returned when CreateBatch gets more records than one atomic batch holds.
	ErrBatchTooLarge = errors.New("trove: batch too large")

	// ErrNotFound is returned by the OrFail lookups when nothing matches.
	ErrNotFound = errors.New("trove: document not found")

	// ErrInvalidLimit is returned for a negative result limit.
	ErrInvalidLimit = errors.New("trove: invalid limit")
)
