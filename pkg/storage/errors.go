package storage

import "errors"

var (
	// ErrReservedKey is returned by Apply when a batch touches the storage
	// engine's own namespace (/config/*, /height, /latest_event_id).
	ErrReservedKey = errors.New("storage: key is reserved")
	// ErrNoPendingBatch is not returned by any Engine method: Commit with
	// nothing staged succeeds.
	ErrNoPendingBatch = errors.New("storage: no pending batch to commit")
	// ErrKeyNotFound is returned by Prove for a key absent from the
	// committed key set.
	ErrKeyNotFound = errors.New("storage: key not found")
	// ErrClosed is returned by any operation against a closed Engine.
	ErrClosed = errors.New("storage: engine is closed")
)
