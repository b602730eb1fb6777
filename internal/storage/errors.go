package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned by append-only inserts when the key
	// already exists. Upsert writes never return it; conflicts there are
	// absorbed by the natural-key upsert contract.
	ErrDuplicateKey = errors.New("duplicate key: append-only insert does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
