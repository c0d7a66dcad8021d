package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsmith/lineage/pkg/types"
)

func TestBacklinks(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	commitDoc(t, e, types.KindPerson, person("p-2", "I0002", "Grace", "Hopper", 1))
	commitDoc(t, e, types.KindFamily, family("f-1", "F0001", "p-1", "p-2"))

	event := types.Document{
		types.FieldHandle:    "e-1",
		types.FieldDisplayID: "E0001",
		"type":               "Birth",
		"person":             types.Ref(types.KindPerson, "p-1"),
	}
	commitDoc(t, e, types.KindEvent, event)

	links, err := e.Backlinks("p-1")
	require.NoError(t, err)
	assert.Equal(t, []types.Backlink{
		{Kind: types.KindEvent, Handle: "e-1"},
		{Kind: types.KindFamily, Handle: "f-1"},
	}, links)

	// restricted to one owner kind
	links, err = e.Backlinks("p-1", types.KindFamily)
	require.NoError(t, err)
	assert.Equal(t, []types.Backlink{{Kind: types.KindFamily, Handle: "f-1"}}, links)

	links, err = e.Backlinks("p-1", types.KindNote)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestBacklinksFollowUpdates(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	commitDoc(t, e, types.KindFamily, family("f-1", "F0001", "p-1", ""))

	links, err := e.Backlinks("p-1")
	require.NoError(t, err)
	require.Len(t, links, 1)

	// removing the embedded reference removes the backlink
	commitDoc(t, e, types.KindFamily, family("f-1", "F0001", "", ""))
	links, err = e.Backlinks("p-1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestDeleteClearsBothDirections(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	commitDoc(t, e, types.KindFamily, family("f-1", "F0001", "p-1", ""))

	// delete the referenced person: rows pointing at it go too
	deleteDoc(t, e, types.KindPerson, "p-1")
	links, err := e.Backlinks("p-1")
	require.NoError(t, err)
	assert.Empty(t, links)

	// the family still embeds the stale handle; re-committing it restores
	// the backlink row
	fam, err := e.Get(types.KindFamily, "f-1")
	require.NoError(t, err)
	fam["note"] = "stale father reference"
	commitDoc(t, e, types.KindFamily, fam)

	links, err = e.Backlinks("p-1")
	require.NoError(t, err)
	assert.Equal(t, []types.Backlink{{Kind: types.KindFamily, Handle: "f-1"}}, links)
}

func TestDeleteOwnerClearsItsReferences(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	commitDoc(t, e, types.KindFamily, family("f-1", "F0001", "p-1", ""))

	deleteDoc(t, e, types.KindFamily, "f-1")
	links, err := e.Backlinks("p-1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestNestedReferencesAreIndexed(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "Ada", "Lovelace", 1))
	commitDoc(t, e, types.KindSource, types.Document{
		types.FieldHandle:    "s-1",
		types.FieldDisplayID: "S0001",
		"title":              "Parish register",
	})

	// a citation reference carrying its own nested note reference
	commitDoc(t, e, types.KindNote, types.Document{
		types.FieldHandle:    "n-1",
		types.FieldDisplayID: "N0001",
		"text":               "margin note",
	})
	citation := types.Document{
		types.FieldHandle:    "c-1",
		types.FieldDisplayID: "C0001",
		"source":             types.Ref(types.KindSource, "s-1"),
		"note_list": []any{
			types.Ref(types.KindNote, "n-1"),
		},
	}
	commitDoc(t, e, types.KindCitation, citation)

	links, err := e.Backlinks("n-1")
	require.NoError(t, err)
	assert.Equal(t, []types.Backlink{{Kind: types.KindCitation, Handle: "c-1"}}, links)

	links, err = e.Backlinks("s-1")
	require.NoError(t, err)
	assert.Equal(t, []types.Backlink{{Kind: types.KindCitation, Handle: "c-1"}}, links)
}
