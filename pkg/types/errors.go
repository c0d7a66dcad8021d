package types

import (
	"errors"
	"fmt"
)

// Engine lifecycle errors.
var (
	ErrClosed      = errors.New("store is closed")
	ErrAlreadyOpen = errors.New("store is already open")
)

// Operation errors.
var (
	// ErrNotFound is returned on a lookup miss. Recoverable; the caller
	// decides what a missing object means.
	ErrNotFound = errors.New("object not found")

	// ErrConflict is returned when a commit would violate a uniqueness
	// constraint (display id or raw key clash). Recoverable; the caller
	// must resolve and retry the whole unit of work.
	ErrConflict = errors.New("uniqueness conflict")

	// ErrSchemaMismatch is returned when a where or order-by field path
	// does not exist in the kind's schema or cannot be parsed.
	ErrSchemaMismatch = errors.New("field path not in schema")

	// ErrBackendUnavailable wraps connection and storage failures. Fatal
	// to the current transaction; the engine aborts before returning it.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrUnknownKind is returned when an operation names a kind the
	// registry does not declare.
	ErrUnknownKind = errors.New("unknown object kind")

	// ErrTxnDone is returned when a transaction is used after Commit or
	// Abort.
	ErrTxnDone = errors.New("transaction already finished")
)

// DocumentError reports a structural problem in a serialized document.
// Fatal for that object only; unrelated work continues.
type DocumentError struct {
	Path   string // field path of the offending value, "" for the root
	Reason string
}

func (e *DocumentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed document: %s", e.Reason)
	}
	return fmt.Sprintf("malformed document at %q: %s", e.Path, e.Reason)
}

// IsMalformed reports whether err is (or wraps) a DocumentError.
func IsMalformed(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}
