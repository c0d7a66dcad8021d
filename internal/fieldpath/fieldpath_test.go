package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	doc := map[string]any{
		"title": "A Title",
		"primary_name": map[string]any{
			"first_name": "Ada",
			"surname_list": []any{
				map[string]any{"surname": "Lovelace"},
				map[string]any{"surname": "Byron"},
			},
		},
	}

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{name: "top level", path: "title", want: "A Title", wantOK: true},
		{name: "nested", path: "primary_name.first_name", want: "Ada", wantOK: true},
		{name: "list index", path: "primary_name.surname_list.0.surname", want: "Lovelace", wantOK: true},
		{name: "second list element", path: "primary_name.surname_list.1.surname", want: "Byron", wantOK: true},
		{name: "missing field", path: "primary_name.nickname", wantOK: false},
		{name: "index out of range", path: "primary_name.surname_list.5.surname", wantOK: false},
		{name: "index into non-list", path: "title.0", wantOK: false},
		{name: "descend into scalar", path: "title.sub", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Compile(tt.path)
			require.NoError(t, err)
			got, ok := r(doc)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, path := range []string{"", "a..b", ".a", "a.", "a.-1.b"} {
		t.Run(path, func(t *testing.T) {
			_, err := Compile(path)
			assert.Error(t, err)
		})
	}
}

func TestTableCaches(t *testing.T) {
	table := NewTable()
	r1, err := table.Get("a.b")
	require.NoError(t, err)
	r2, err := table.Get("a.b")
	require.NoError(t, err)

	doc := map[string]any{"a": map[string]any{"b": "v"}}
	v1, ok1 := r1(doc)
	v2, ok2 := r2(doc)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, v1, v2)

	_, err = table.Get("")
	assert.Error(t, err)
}
