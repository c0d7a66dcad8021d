package types

import "iter"

// Operation tags a change to one object.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeHandler receives a change notification after a transaction
// commits: the kind, the operation, and the affected handles.
type ChangeHandler func(kind string, op Operation, handles []string)

// Backlink identifies an object whose document references some handle.
type Backlink struct {
	Kind   string // owner kind
	Handle string // owner handle
}

// Txn is a unit of work. All mutations go through an open transaction;
// at most one transaction is open per store at a time, and Begin blocks
// until the writer slot is free.
//
// The intended shape is:
//
//	txn, err := store.Begin("add person", false)
//	...
//	defer txn.Abort() // no-op after a successful Commit
//	...
//	return txn.Commit()
//
// Any error returned from Commit/Delete on the store while the
// transaction is accumulating has already aborted it; partial writes are
// never observable.
type Txn interface {
	// Commit finalizes the transaction: backend COMMIT, then change
	// notifications and undo records (skipped for batch transactions,
	// which instead run the bulk rebuild passes).
	Commit() error

	// Abort rolls back every mutation since Begin. Idempotent; calling
	// Abort after Commit is a no-op.
	Abort() error
}

// Store is the object-access contract the engine offers its collaborators
// (HTTP layer, importers, exporters).
type Store interface {
	// Close releases the backing database. Idempotent.
	Close() error

	// Get returns the decoded document for a handle, or ErrNotFound.
	Get(kind, handle string) (Document, error)

	// GetByDisplayID returns the decoded document carrying the given
	// display id, or ErrNotFound.
	GetByDisplayID(kind, displayID string) (Document, error)

	// Has reports whether an object exists.
	Has(kind, handle string) (bool, error)

	// Commit inserts or updates an object inside txn, recomputing its
	// secondary columns and reference rows in the same unit of work.
	// Committing a byte-identical document is a no-op.
	Commit(txn Txn, kind string, doc Document) error

	// Delete removes an object and its reference rows inside txn.
	Delete(txn Txn, kind, handle string) error

	// Select runs a filtered, sorted, windowed listing. Execution is
	// native SQL when every referenced field is projected, otherwise an
	// in-process scan with identical semantics.
	Select(kind string, opts SelectOptions) (*SelectResult, error)

	// Iterate lazily yields every document of a kind. Ordering is only
	// available on projected fields; use Select for anything else. A
	// fresh call re-scans.
	Iterate(kind string, orderBy ...OrderBy) (iter.Seq2[Document, error], error)

	// Count returns the number of objects matching where (nil counts all).
	Count(kind string, where Expr) (int, error)

	// Backlinks returns the owners whose documents reference handle,
	// optionally restricted to the given owner kinds.
	Backlinks(handle string, kinds ...string) ([]Backlink, error)

	// Begin opens a transaction. Batch transactions skip per-object
	// backlink and undo bookkeeping and rebuild wholesale at commit;
	// used for bulk imports.
	Begin(description string, batch bool) (Txn, error)

	// OnChange subscribes to committed-change notifications.
	OnChange(fn ChangeHandler)

	// NewDisplayID mints the next free display id for a kind (I0001,
	// F0001, ...) inside txn.
	NewDisplayID(txn Txn, kind string) (string, error)

	// MetaGet reads a metadata setting. ok is false when unset.
	MetaGet(key string) (value string, ok bool, err error)

	// MetaSet writes a metadata setting inside txn.
	MetaSet(txn Txn, key, value string) error

	// Check verifies the projection and backlink invariants across the
	// whole database and returns a description of each violation.
	Check() ([]string, error)
}
