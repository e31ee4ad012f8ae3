package session

import "errors"

// Error taxonomy for synchronizer operations. Callers classify with
// errors.Is; wrapped errors carry the underlying adapter failure.
var (
	// ErrStorageUnavailable means neither local nor remote storage could
	// accept the operation. Only bootstrap treats this as fatal.
	ErrStorageUnavailable = errors.New("session storage unavailable")

	// ErrRemoteRejected means the remote store refused the operation
	// (validation or permission). Surfaced to the caller on create,
	// logged and swallowed on switch/append/delete.
	ErrRemoteRejected = errors.New("remote store rejected operation")

	// ErrNotFound means the operation referenced a session id absent
	// from the collection.
	ErrNotFound = errors.New("session not found")
)
