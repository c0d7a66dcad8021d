package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsmith/lineage/pkg/types"
)

// seedPeople commits a small cast with both projected and free-form
// fields. p-4 has no surname at all.
func seedPeople(t *testing.T, e *Engine) {
	t.Helper()
	docs := []types.Document{
		person("p-1", "I0001", "Ada", "Lovelace", 1),
		person("p-2", "I0002", "Grace", "Hopper", 1),
		person("p-3", "I0003", "Alan", "Turing", 0),
		person("p-4", "I0004", "Anon", "", 0),
	}
	docs[0]["occupation"] = "mathematician"
	docs[1]["occupation"] = "rear admiral"
	docs[2]["occupation"] = "mathematician"

	txn, err := e.Begin("seed", false)
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, e.Commit(txn, types.KindPerson, doc))
	}
	require.NoError(t, txn.Commit())
}

func TestSelectEquality(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where: types.Eq("surname", "Lovelace"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, []string{"p-1"}, handlesOf(res.Rows))
	assert.Positive(t, res.Elapsed)
}

func TestSelectNotEqualSkipsMissing(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	// p-4 has no surname: a comparison against NULL never matches
	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where:   types.Ne("surname", "Lovelace"),
		OrderBy: []types.OrderBy{{Field: "display_id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-2", "p-3"}, handlesOf(res.Rows))
}

func TestSelectLikeIsCaseInsensitive(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where:   types.Like("surname", "lov%"),
		OrderBy: []types.OrderBy{{Field: "display_id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, handlesOf(res.Rows))

	res, err = e.Select(types.KindPerson, types.SelectOptions{
		Where: types.NotLike("surname", "%e%"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3"}, handlesOf(res.Rows)) // Turing only; p-4 is NULL
}

func TestSelectIn(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where:   types.In("surname", "Lovelace", "Hopper", "Bernoulli"),
		OrderBy: []types.OrderBy{{Field: "display_id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, handlesOf(res.Rows))
}

func TestSelectEmptyIn(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	for _, field := range []string{"surname", "occupation"} {
		res, err := e.Select(types.KindPerson, types.SelectOptions{Where: types.In(field)})
		require.NoError(t, err)
		assert.Zero(t, res.Total, "empty IN on %s", field)

		// NOT over a constant-false empty IN matches every row, on both
		// execution paths
		res, err = e.Select(types.KindPerson, types.SelectOptions{Where: types.Not(types.In(field))})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total, "negated empty IN on %s", field)
	}
}

func TestSelectNestedBoolean(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where: types.And(
			types.Eq("gender", 1),
			types.Or(
				types.Like("surname", "L%"),
				types.Like("surname", "H%"),
			),
		),
		OrderBy: []types.OrderBy{{Field: "surname"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-2", "p-1"}, handlesOf(res.Rows))
}

func TestSelectFallbackOnFreeField(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	// occupation is not projected, so the whole query runs in process
	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where:   types.Eq("occupation", "mathematician"),
		OrderBy: []types.OrderBy{{Field: "display_id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"p-1", "p-3"}, handlesOf(res.Rows))
}

func TestSelectMixedFieldsForceFallback(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	// one free-form field drags the projected conditions along with it;
	// the result must match what the native path would produce alone
	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where: types.And(
			types.Eq("gender", 0),
			types.Like("occupation", "%math%"),
		),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3"}, handlesOf(res.Rows))
}

func TestNativeAndFallbackAgree(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	native, err := e.Select(types.KindPerson, types.SelectOptions{
		Where:   types.In("surname", "Lovelace", "Hopper"),
		OrderBy: []types.OrderBy{{Field: "surname"}},
	})
	require.NoError(t, err)

	// AND-ing a tautology over a free-form field keeps the logical filter
	// identical but forces the whole query onto the scan path
	fallback, err := e.Select(types.KindPerson, types.SelectOptions{
		Where: types.And(
			types.In("surname", "Lovelace", "Hopper"),
			types.Not(types.In("some.free.field")),
		),
		OrderBy: []types.OrderBy{{Field: "surname"}},
	})
	require.NoError(t, err)

	assert.Equal(t, native.Total, fallback.Total)
	assert.Equal(t, handlesOf(native.Rows), handlesOf(fallback.Rows))
}

func TestSelectOrderAndWindow(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	// ascending on surname: the NULL surname sorts first
	res, err := e.Select(types.KindPerson, types.SelectOptions{
		OrderBy: []types.OrderBy{{Field: "surname"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-4", "p-2", "p-1", "p-3"}, handlesOf(res.Rows))

	// the window applies after the global sort, and Total ignores it
	res, err = e.Select(types.KindPerson, types.SelectOptions{
		OrderBy: []types.OrderBy{{Field: "surname"}},
		Start:   1,
		Count:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, []string{"p-2", "p-1"}, handlesOf(res.Rows))

	// same request on the fallback path
	res, err = e.Select(types.KindPerson, types.SelectOptions{
		Where:   types.Not(types.Eq("occupation", "nothing")),
		OrderBy: []types.OrderBy{{Field: "surname"}},
		Start:   1,
		Count:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total) // p-4 has no occupation: unknown, excluded
	assert.Equal(t, []string{"p-1", "p-3"}, handlesOf(res.Rows))
}

func TestSelectOrderByFreeField(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	res, err := e.Select(types.KindPerson, types.SelectOptions{
		OrderBy: []types.OrderBy{{Field: "occupation", Descending: true}},
	})
	require.NoError(t, err)
	// rear admiral, then the two mathematicians (stable), then NULL last
	assert.Equal(t, []string{"p-2", "p-1", "p-3", "p-4"}, handlesOf(res.Rows))
}

func TestSelectFields(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	res, err := e.Select(types.KindPerson, types.SelectOptions{
		Where:  types.Eq("surname", "Lovelace"),
		Fields: []string{"surname", "occupation"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.Document{
		"surname":    "Lovelace",
		"occupation": "mathematician",
	}, res.Rows[0])
}

func TestSelectBadFieldPath(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	_, err := e.Select(types.KindPerson, types.SelectOptions{
		Where: types.Eq("bad..path", "x"),
	})
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)

	_, err = e.Select(types.KindPerson, types.SelectOptions{
		OrderBy: []types.OrderBy{{Field: ""}},
	})
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}

func TestFoldColumnOrdering(t *testing.T) {
	e := newTestEngine(t)
	commitDoc(t, e, types.KindPerson, person("p-1", "I0001", "A", "ab", 0))
	commitDoc(t, e, types.KindPerson, person("p-2", "I0002", "B", "Ba", 0))

	// raw surname sorts by byte value: uppercase first
	res, err := e.Select(types.KindPerson, types.SelectOptions{
		OrderBy: []types.OrderBy{{Field: "surname"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-2", "p-1"}, handlesOf(res.Rows))

	// the folded sort key gives collation order
	res, err = e.Select(types.KindPerson, types.SelectOptions{
		OrderBy: []types.OrderBy{{Field: "surname_sort"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, handlesOf(res.Rows))
}

func TestCount(t *testing.T) {
	e := newTestEngine(t)
	seedPeople(t, e)

	n, err := e.Count(types.KindPerson, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = e.Count(types.KindPerson, types.Eq("gender", 1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.Count(types.KindPerson, types.Eq("occupation", "mathematician"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.Count(types.KindFamily, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
