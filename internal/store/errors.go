package store

import "errors"

var (
	// ErrNotFound is returned when a lookup by client_id, code or token
	// value matches no row. Callers treat it as an ordinary failure
	// outcome, never a crash.
	ErrNotFound = errors.New("record not found")
)
