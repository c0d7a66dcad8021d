package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rootsmith/lineage/pkg/types"
)

// newTestEngine opens an engine on a fresh temp directory with the
// default genealogical registry.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}, types.DefaultRegistry(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// commitDoc runs one document commit in its own transaction.
func commitDoc(t *testing.T, e *Engine, kind string, doc types.Document) {
	t.Helper()
	txn, err := e.Begin("test commit", false)
	require.NoError(t, err)
	require.NoError(t, e.Commit(txn, kind, doc))
	require.NoError(t, txn.Commit())
}

// deleteDoc runs one delete in its own transaction.
func deleteDoc(t *testing.T, e *Engine, kind, handle string) {
	t.Helper()
	txn, err := e.Begin("test delete", false)
	require.NoError(t, err)
	require.NoError(t, e.Delete(txn, kind, handle))
	require.NoError(t, txn.Commit())
}

// person builds a minimal person document.
func person(handle, displayID, givenName, surname string, gender int) types.Document {
	doc := types.Document{
		types.FieldHandle:    handle,
		types.FieldDisplayID: displayID,
		"gender":             gender,
	}
	name := map[string]any{"first_name": givenName}
	if surname != "" {
		name["surname_list"] = []any{map[string]any{"surname": surname}}
	}
	doc["primary_name"] = name
	return doc
}

// family builds a family document referencing the given parents.
func family(handle, displayID, fatherHandle, motherHandle string) types.Document {
	doc := types.Document{
		types.FieldHandle:    handle,
		types.FieldDisplayID: displayID,
	}
	if fatherHandle != "" {
		doc["father"] = types.Ref(types.KindPerson, fatherHandle)
	}
	if motherHandle != "" {
		doc["mother"] = types.Ref(types.KindPerson, motherHandle)
	}
	return doc
}

// handlesOf extracts the handle of every result row.
func handlesOf(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = types.Handle(doc)
	}
	return out
}
