package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound  = errors.New("unit not found")
	ErrImmutable = errors.New("unit already finalized; assignment is immutable")
	// ErrConflict marks a transaction that could not serialize. The caller
	// should retry the whole submission.
	ErrConflict = errors.New("transaction conflict")
)
