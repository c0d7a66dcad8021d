package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsmith/lineage/pkg/types"
)

func TestCommitAndGet(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))

	doc, err := e.Get(types.KindPerson, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", types.Handle(doc))
	assert.Equal(t, "I0001", types.DisplayID(doc))
	assert.Positive(t, types.Change(doc), "commit must stamp the change field")

	ok, err := e.Has(types.KindPerson, "p-1")
	require.NoError(t, err)
	assert.True(t, ok)

	byID, err := e.GetByDisplayID(types.KindPerson, "I0001")
	require.NoError(t, err)
	assert.Equal(t, "p-1", types.Handle(byID))
}

func TestGetMissing(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Get(types.KindPerson, "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.GetByDisplayID(types.KindPerson, "I9999")
	assert.ErrorIs(t, err, types.ErrNotFound)

	ok, err := e.Has(types.KindPerson, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitWithoutHandleAborts(t *testing.T) {
	e := newTestEngine(t)
	txn, err := e.Begin("bad commit", false)
	require.NoError(t, err)

	err = e.Commit(txn, types.KindPerson, types.Document{"title": "no handle"})
	require.Error(t, err)
	assert.True(t, types.IsMalformed(err))

	// the failed commit aborted the whole transaction
	err = e.Commit(txn, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	assert.ErrorIs(t, err, types.ErrTxnDone)
	assert.ErrorIs(t, txn.Commit(), types.ErrTxnDone)
}

func TestIdempotentRecommit(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))

	stored, err := e.Get(types.KindPerson, "p-1")
	require.NoError(t, err)
	change := types.Change(stored)

	// re-committing the stored document is a no-op
	commitDoc(t, e, types.KindPerson, stored)

	after, err := e.Get(types.KindPerson, "p-1")
	require.NoError(t, err)
	assert.Equal(t, change, types.Change(after), "change timestamp must not move")

	n, err := e.UndoLog().Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "no-op commit must not add undo records")
}

func TestUpdateChangesDocument(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))

	updated := person("p-1", "I0001", "Augusta Ada", "Lovelace", 1)
	commitDoc(t, e, types.KindPerson, updated)

	doc, err := e.Get(types.KindPerson, "p-1")
	require.NoError(t, err)
	name := doc["primary_name"].(map[string]any)
	assert.Equal(t, "Augusta Ada", name["first_name"])

	n, err := e.UndoLog().Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDisplayIDConflict(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))

	txn, err := e.Begin("conflicting insert", false)
	require.NoError(t, err)
	err = e.Commit(txn, types.KindPerson, person("p-2", "I0001", "Grace", "Hopper", 1))
	assert.ErrorIs(t, err, types.ErrConflict)

	ok, err := e.Has(types.KindPerson, "p-2")
	require.NoError(t, err)
	assert.False(t, ok, "conflicting insert must not be observable")
}

func TestDeleteRemovesObject(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	deleteDoc(t, e, types.KindPerson, "p-1")

	_, err := e.Get(types.KindPerson, "p-1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestIterate(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	commitDoc(t, e, types.KindPerson, person("p-2", "I0002", "Grace", "Hopper", 1))
	commitDoc(t, e, types.KindPerson, person("p-3", "I0003", "Alan", "Turing", 0))

	seq, err := e.Iterate(types.KindPerson, types.OrderBy{Field: "surname"})
	require.NoError(t, err)

	var handles []string
	for doc, err := range seq {
		require.NoError(t, err)
		handles = append(handles, types.Handle(doc))
	}
	assert.Equal(t, []string{"p-2", "p-1", "p-3"}, handles) // Hopper, Lovelace, Turing

	// a second pass re-scans from the start
	count := 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)

	_, err = e.Iterate(types.KindPerson, types.OrderBy{Field: "shoe_size"})
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}
