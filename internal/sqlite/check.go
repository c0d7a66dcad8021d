package sqlite

import (
	"fmt"
	"sort"

	"github.com/rootsmith/lineage/pkg/types"
)

// Check verifies the engine's two structural invariants across the whole
// database: every projected column equals the field-path extraction from
// its row's current document, and every owner's reference rows equal a
// fresh walk of its document. Returns one description per violation;
// an empty slice means the database is consistent.
func (e *Engine) Check() ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var issues []string
	for _, kind := range e.reg.Kinds() {
		ks, _ := e.reg.Schema(kind)
		kindIssues, err := e.checkKind(ks)
		if err != nil {
			return nil, err
		}
		issues = append(issues, kindIssues...)
	}
	return issues, nil
}

func (e *Engine) checkKind(ks types.KindSchema) ([]string, error) {
	cols := colHandle + ", " + colDoc
	for _, sf := range ks.Secondary {
		cols += ", " + sf.Name
	}
	rows, err := e.db.Query(fmt.Sprintf("SELECT %s FROM %s", cols, ks.Kind))
	if err != nil {
		return nil, fmt.Errorf("scanning %s for check: %w", ks.Kind, err)
	}
	defer rows.Close()

	var issues []string
	type checked struct {
		handle string
		doc    types.Document
	}
	var docs []checked
	for rows.Next() {
		var handle, raw string
		stored := make([]any, len(ks.Secondary))
		dest := []any{&handle, &raw}
		for i := range stored {
			dest = append(dest, &stored[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", ks.Kind, err)
		}
		doc, err := types.Decode([]byte(raw))
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s %s: malformed document: %v", ks.Kind, handle, err))
			continue
		}
		expected, err := e.columnValues(ks, doc)
		if err != nil {
			return nil, err
		}
		for i, sf := range ks.Secondary {
			if !columnEqual(stored[i], expected[i]) {
				issues = append(issues, fmt.Sprintf(
					"%s %s: column %s holds %v, document extraction gives %v",
					ks.Kind, handle, sf.Name, stored[i], expected[i]))
			}
		}
		docs = append(docs, checked{handle: handle, doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range docs {
		mismatch, err := e.checkReferences(ks.Kind, c.handle, c.doc)
		if err != nil {
			return nil, err
		}
		issues = append(issues, mismatch...)
	}
	return issues, nil
}

func (e *Engine) checkReferences(kind, handle string, doc types.Document) ([]string, error) {
	rows, err := e.db.Query(
		"SELECT ref_kind, ref_handle FROM reference WHERE obj_handle = ? ORDER BY ref_kind, ref_handle",
		handle)
	if err != nil {
		return nil, fmt.Errorf("reading references of %s: %w", handle, err)
	}
	defer rows.Close()

	var stored []types.ObjectRef
	for rows.Next() {
		var ref types.ObjectRef
		if err := rows.Scan(&ref.Kind, &ref.Handle); err != nil {
			return nil, fmt.Errorf("scanning reference row: %w", err)
		}
		stored = append(stored, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	expected := types.References(doc)
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].Kind != stored[j].Kind {
			return stored[i].Kind < stored[j].Kind
		}
		return stored[i].Handle < stored[j].Handle
	})
	if len(stored) != len(expected) {
		return []string{fmt.Sprintf("%s %s: %d reference rows, document walk gives %d",
			kind, handle, len(stored), len(expected))}, nil
	}
	for i := range stored {
		if stored[i] != expected[i] {
			return []string{fmt.Sprintf("%s %s: reference row %v, document walk gives %v",
				kind, handle, stored[i], expected[i])}, nil
		}
	}
	return nil, nil
}

// columnEqual compares a scanned column value with a freshly projected
// one, tolerating driver representation differences.
func columnEqual(stored, expected any) bool {
	if stored == nil || expected == nil {
		return stored == nil && expected == nil
	}
	if b, ok := stored.([]byte); ok {
		stored = string(b)
	}
	cmp, comparable := compareValues(stored, expected)
	return comparable && cmp == 0
}
