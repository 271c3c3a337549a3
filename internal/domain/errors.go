package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConsistencyMismatch = errors.New("settlement matches neither current bid nor current sale")
	ErrDuplicateEvent      = errors.New("event already processed")
	ErrUnknownEvent        = errors.New("unknown event kind")
	ErrLockHeld            = errors.New("lock already held")
	ErrReverted            = errors.New("execution reverted")
)
