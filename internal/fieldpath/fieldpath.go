// Package fieldpath compiles dotted field paths into resolvers over
// document values. The grammar is fixed: dot-separated field names, where
// a segment of digits indexes into a list ("primary_name.surname_list.0.surname").
// Paths are compiled once per (kind, path) and cached by the engine, not
// re-parsed per row.
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Resolver extracts one field from a document. ok is false when any
// segment of the path is absent or of the wrong shape.
type Resolver func(doc map[string]any) (value any, ok bool)

type segment struct {
	name  string
	index int
	list  bool
}

// Compile parses a field path into a Resolver. An empty path or empty
// segment is an error.
func Compile(path string) (Resolver, error) {
	if path == "" {
		return nil, fmt.Errorf("empty field path")
	}
	parts := strings.Split(path, ".")
	segs := make([]segment, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("field path %q: empty segment", path)
		}
		if idx, err := strconv.Atoi(p); err == nil {
			if idx < 0 {
				return nil, fmt.Errorf("field path %q: negative list index", path)
			}
			segs[i] = segment{index: idx, list: true}
		} else {
			segs[i] = segment{name: p}
		}
	}
	return func(doc map[string]any) (any, bool) {
		var cur any = doc
		for _, seg := range segs {
			if seg.list {
				list, ok := cur.([]any)
				if !ok || seg.index >= len(list) {
					return nil, false
				}
				cur = list[seg.index]
			} else {
				m, ok := cur.(map[string]any)
				if !ok {
					return nil, false
				}
				cur, ok = m[seg.name]
				if !ok {
					return nil, false
				}
			}
		}
		return cur, true
	}, nil
}

// Table caches compiled resolvers by path. Safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewTable returns an empty resolver cache.
func NewTable() *Table {
	return &Table{resolvers: make(map[string]Resolver)}
}

// Get returns the cached resolver for path, compiling it on first use.
func (t *Table) Get(path string) (Resolver, error) {
	t.mu.RLock()
	r, ok := t.resolvers[path]
	t.mu.RUnlock()
	if ok {
		return r, nil
	}
	r, err := Compile(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.resolvers[path] = r
	t.mu.Unlock()
	return r, nil
}
