package pool

import "errors"

var (
	// ErrOutOfRange is returned by Free when the index is not a valid slot.
	ErrOutOfRange = errors.New("pool: index out of range")
	// ErrNotAllocated is returned by Free when the slot is already free.
	ErrNotAllocated = errors.New("pool: slot not allocated")
)
