package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsmith/lineage/pkg/types"
)

func TestOpenRoundTrip(t *testing.T) {
	store, err := Open(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}, types.DefaultRegistry(), Options{})
	require.NoError(t, err)
	defer store.Close()

	txn, err := store.Begin("add a person", false)
	require.NoError(t, err)
	defer txn.Abort()

	handle := types.NewHandle()
	displayID, err := store.NewDisplayID(txn, types.KindPerson)
	require.NoError(t, err)
	assert.Equal(t, "I0001", displayID)

	require.NoError(t, store.Commit(txn, types.KindPerson, types.Document{
		types.FieldHandle:    handle,
		types.FieldDisplayID: displayID,
		"primary_name": map[string]any{
			"first_name":   "Ada",
			"surname_list": []any{map[string]any{"surname": "Lovelace"}},
		},
	}))
	require.NoError(t, txn.Commit())

	doc, err := store.GetByDisplayID(types.KindPerson, "I0001")
	require.NoError(t, err)
	assert.Equal(t, handle, types.Handle(doc))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(types.Config{Backend: "mssql"}, types.DefaultRegistry(), Options{})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}
