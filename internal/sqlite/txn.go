package sqlite

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rootsmith/lineage/internal/undo"
	"github.com/rootsmith/lineage/pkg/types"
)

// Txn is a unit of work: an open backend transaction plus an in-memory
// accumulator of pending object changes. Only the transaction manager
// issues BEGIN/COMMIT/ROLLBACK; every mutation path goes through here.
type Txn struct {
	e           *Engine
	tx          *sql.Tx
	description string
	batch       bool
	done        bool
	pending     []pendingChange
}

type pendingChange struct {
	kind   string
	op     types.Operation
	handle string
	before []byte // canonical document before the change, nil for insert
	after  []byte // canonical document after the change, nil for delete
}

// Begin opens a transaction. The single-writer gate is taken first, so
// Begin blocks while another transaction is accumulating; the backend
// BEGIN is issued immediately after. Batch transactions skip per-object
// backlink and undo bookkeeping in favor of bulk rebuilds at commit.
func (e *Engine) Begin(description string, batch bool) (types.Txn, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	e.writerMu.Lock()
	tx, err := e.db.Begin()
	if err != nil {
		e.writerMu.Unlock()
		return nil, fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	return &Txn{e: e, tx: tx, description: description, batch: batch}, nil
}

// ownTxn asserts that txn belongs to this engine and is still active.
func (e *Engine) ownTxn(txn types.Txn) (*Txn, error) {
	t, ok := txn.(*Txn)
	if !ok || t.e != e {
		return nil, fmt.Errorf("transaction does not belong to this store")
	}
	if t.done {
		return nil, types.ErrTxnDone
	}
	return t, nil
}

// fail aborts the transaction and returns err. Every error during
// accumulation takes this path, so a multi-object unit of work is never
// partially observable; the caller's deferred Abort becomes a no-op.
func (t *Txn) fail(err error) error {
	if !t.done {
		_ = t.tx.Rollback()
		t.finish()
	}
	return err
}

func (t *Txn) finish() {
	t.done = true
	t.pending = nil
	t.e.writerMu.Unlock()
}

// Commit inserts or updates one object inside txn. The document column,
// every secondary column, and (for non-batch transactions) the reference
// rows are written in the same unit of work. Committing a document that
// is unchanged apart from its change timestamp is a no-op: no row write,
// no undo record.
//
// The change timestamp is set to the current epoch second on every
// effective commit. Any error aborts the whole transaction.
func (e *Engine) Commit(txn types.Txn, kind string, doc types.Document) error {
	t, err := e.ownTxn(txn)
	if err != nil {
		return err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return t.fail(err)
	}
	handle := types.Handle(doc)
	if handle == "" {
		return t.fail(&types.DocumentError{Path: types.FieldHandle, Reason: "missing or empty"})
	}

	before, found, err := t.readDoc(ks.Kind, handle)
	if err != nil {
		return t.fail(err)
	}

	next := types.CloneDocument(doc)
	op := types.OpInsert
	if found {
		op = types.OpUpdate
		beforeDoc, err := types.Decode(before)
		if err != nil {
			return t.fail(err)
		}
		// Compare with the stored change timestamp held constant; an
		// otherwise identical document is an idempotent re-commit.
		if prev, ok := beforeDoc[types.FieldChange]; ok {
			next[types.FieldChange] = prev
		} else {
			delete(next, types.FieldChange)
		}
		same, err := types.Encode(next)
		if err != nil {
			return t.fail(err)
		}
		if bytes.Equal(same, before) {
			return nil
		}
	}

	next[types.FieldChange] = time.Now().Unix()
	after, err := types.Encode(next)
	if err != nil {
		return t.fail(err)
	}

	if err := e.put(t.tx, ks, handle, after, next); err != nil {
		return t.fail(err)
	}
	if !t.batch {
		if err := e.updateReferences(t.tx, ks.Kind, handle, next); err != nil {
			return t.fail(err)
		}
		t.pending = append(t.pending, pendingChange{
			kind: kind, op: op, handle: handle, before: before, after: after,
		})
	}
	return nil
}

// Delete removes one object inside txn, along with every reference row it
// owns and every reference row pointing at it. Owners that still embed
// the handle get their rows back when they are next re-committed. Any
// error, including a missing object, aborts the whole transaction.
func (e *Engine) Delete(txn types.Txn, kind, handle string) error {
	t, err := e.ownTxn(txn)
	if err != nil {
		return err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return t.fail(err)
	}

	before, found, err := t.readDoc(ks.Kind, handle)
	if err != nil {
		return t.fail(err)
	}
	if !found {
		return t.fail(fmt.Errorf("%w: %s %s", types.ErrNotFound, kind, handle))
	}

	if err := e.removeReferences(t.tx, handle); err != nil {
		return t.fail(err)
	}
	if _, err := t.tx.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", ks.Kind, colHandle), handle); err != nil {
		return t.fail(fmt.Errorf("deleting %s %s: %w", kind, handle, err))
	}
	if !t.batch {
		t.pending = append(t.pending, pendingChange{
			kind: kind, op: types.OpDelete, handle: handle, before: before,
		})
	}
	return nil
}

func (t *Txn) readDoc(kind, handle string) ([]byte, bool, error) {
	var raw string
	err := t.tx.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", colDoc, kind, colHandle),
		handle).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s %s: %w", kind, handle, err)
	}
	return []byte(raw), true, nil
}

// Commit finalizes the transaction. Batch transactions first run the bulk
// rebuilds (collation sort-key columns, then the whole reference table)
// inside the still-open backend transaction. After the backend COMMIT,
// non-batch transactions append one undo record per accumulated change
// and emit per-kind notifications, excluding handles that were both
// inserted and deleted within this transaction.
func (t *Txn) Commit() error {
	if t.done {
		return types.ErrTxnDone
	}
	if t.batch {
		if err := t.e.rebuildFoldColumns(t.tx); err != nil {
			return t.fail(err)
		}
		if err := t.e.rebuildReferences(t.tx); err != nil {
			return t.fail(err)
		}
	}
	if err := t.tx.Commit(); err != nil {
		_ = t.tx.Rollback()
		t.finish()
		return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}

	pending := t.pending
	t.pending = nil
	t.done = true

	var undoErr error
	if !t.batch && len(pending) > 0 {
		undoErr = t.appendUndo(pending)
	}
	t.e.writerMu.Unlock()

	if !t.batch {
		t.notifyChanges(pending)
	}
	return undoErr
}

// Abort rolls back every mutation since Begin. Idempotent; a no-op after
// Commit.
func (t *Txn) Abort() error {
	if t.done {
		return nil
	}
	err := t.tx.Rollback()
	t.finish()
	if err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}
	return nil
}

func (t *Txn) appendUndo(pending []pendingChange) error {
	txnID, err := t.e.undo.NextTxnID()
	if err != nil {
		return fmt.Errorf("committed, but allocating undo transaction id: %w", err)
	}
	recs := make([]undo.Record, len(pending))
	for i, pc := range pending {
		recs[i] = undo.Record{
			Kind:   pc.kind,
			Op:     pc.op,
			Handle: pc.handle,
			Before: pc.before,
			After:  pc.after,
		}
	}
	if err := t.e.undo.Append(txnID, t.description, recs); err != nil {
		return fmt.Errorf("committed, but appending undo records: %w", err)
	}
	return nil
}

// notifyChanges groups the accumulated changes per kind and operation and
// emits them in registry order. Handles that were inserted and then
// deleted inside the same transaction are dropped entirely.
func (t *Txn) notifyChanges(pending []pendingChange) {
	inserted := make(map[string]bool)
	deleted := make(map[string]bool)
	for _, pc := range pending {
		switch pc.op {
		case types.OpInsert:
			inserted[pc.handle] = true
		case types.OpDelete:
			deleted[pc.handle] = true
		}
	}
	ephemeral := func(handle string) bool {
		return inserted[handle] && deleted[handle]
	}

	type bucket struct {
		kind string
		op   types.Operation
	}
	handles := make(map[bucket][]string)
	for _, pc := range pending {
		if ephemeral(pc.handle) {
			continue
		}
		b := bucket{kind: pc.kind, op: pc.op}
		handles[b] = append(handles[b], pc.handle)
	}

	for _, kind := range t.e.reg.Kinds() {
		for _, op := range []types.Operation{types.OpInsert, types.OpUpdate, types.OpDelete} {
			if hs := handles[bucket{kind: kind, op: op}]; len(hs) > 0 {
				t.e.notify(kind, op, hs)
			}
		}
	}
}
