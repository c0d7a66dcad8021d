package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryConstructors(t *testing.T) {
	expr := And(
		Eq("surname", "Lovelace"),
		Or(
			Like("given_name", "A%"),
			Not(In("gender", 0, 2)),
		),
	)

	junction, ok := expr.(Junction)
	require.True(t, ok)
	assert.Equal(t, JunctionAnd, junction.Op)
	require.Len(t, junction.Args, 2)

	cond, ok := junction.Args[0].(Cond)
	require.True(t, ok)
	assert.Equal(t, "surname", cond.Field)
	assert.Equal(t, OpEqual, cond.Op)
	assert.Equal(t, "Lovelace", cond.Value)

	inner, ok := junction.Args[1].(Junction)
	require.True(t, ok)
	assert.Equal(t, JunctionOr, inner.Op)

	neg, ok := inner.Args[1].(Negation)
	require.True(t, ok)
	in, ok := neg.Arg.(Cond)
	require.True(t, ok)
	assert.Equal(t, OpIn, in.Op)
	assert.Equal(t, []any{0, 2}, in.Value)
}

func TestQueryOperatorText(t *testing.T) {
	assert.Equal(t, Operator("="), OpEqual)
	assert.Equal(t, Operator("!="), OpNotEqual)
	assert.Equal(t, Operator("LIKE"), OpLike)
	assert.Equal(t, Operator("NOT LIKE"), OpNotLike)
	assert.Equal(t, Operator("IN"), OpIn)
}
