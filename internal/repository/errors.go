package repository

import "errors"

var (
	// ErrNotFound is returned when a setting or journal row does not exist
	ErrNotFound = errors.New("journal: not found")
	// ErrInvalidTable is returned by ClearTable for tables outside the journal
	ErrInvalidTable = errors.New("journal: table cannot be cleared")
)
