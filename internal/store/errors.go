package store

import "errors"

var (
	// ErrSlotTaken is returned when an insert loses the race for a start time.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrCodeConflict is returned when a freshly minted cancel code collides
	// with an existing one.
	ErrCodeConflict = errors.New("cancel code conflict")
	ErrNotFound     = errors.New("not found")
)
