package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/rootsmith/lineage/pkg/types"
)

// Get returns the decoded document for a handle. The secondary columns
// are bypassed entirely; they exist only for filtering and sorting.
func (e *Engine) Get(kind, handle string) (types.Document, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return nil, err
	}
	var raw string
	err = e.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", colDoc, ks.Kind, colHandle),
		handle).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", kind, handle, err)
	}
	return types.Decode([]byte(raw))
}

// GetByDisplayID returns the decoded document carrying the display id.
func (e *Engine) GetByDisplayID(kind, displayID string) (types.Document, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return nil, err
	}
	sf, ok := ks.Projected(types.FieldDisplayID)
	if !ok {
		return nil, fmt.Errorf("%w: kind %q does not project a display id", types.ErrSchemaMismatch, kind)
	}
	var raw string
	err = e.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", colDoc, ks.Kind, sf.Name),
		displayID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s by display id %s: %w", kind, displayID, err)
	}
	return types.Decode([]byte(raw))
}

// Has reports whether an object exists.
func (e *Engine) Has(kind, handle string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return false, err
	}
	var found int
	err = e.db.QueryRow(
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", ks.Kind, colHandle),
		handle).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing %s %s: %w", kind, handle, err)
	}
	return true, nil
}

// Iterate lazily yields every document of a kind. Ordering is available
// only on projected fields; anything else must go through Select's
// fallback path. Each call re-scans from the start.
func (e *Engine) Iterate(kind string, orderBy ...types.OrderBy) (iter.Seq2[types.Document, error], error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return nil, err
	}
	orderSQL, err := orderClause(ks, orderBy)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s", colDoc, ks.Kind, orderSQL)

	return func(yield func(types.Document, error) bool) {
		rows, err := e.db.Query(query)
		if err != nil {
			yield(nil, fmt.Errorf("iterating %s: %w", kind, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				yield(nil, fmt.Errorf("scanning %s row: %w", kind, err))
				return
			}
			doc, err := types.Decode([]byte(raw))
			if !yield(doc, err) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}, nil
}

// orderClause validates order-by fields against the projected set and
// builds the ORDER BY text. Returns "" for an empty order.
func orderClause(ks types.KindSchema, orderBy []types.OrderBy) (string, error) {
	if len(orderBy) == 0 {
		return "", nil
	}
	var parts []string
	for _, ob := range orderBy {
		sf, ok := ks.Projected(ob.Field)
		if !ok {
			return "", fmt.Errorf("%w: %q is not a projected column of %s",
				types.ErrSchemaMismatch, ob.Field, ks.Kind)
		}
		dir := "ASC"
		if ob.Descending {
			dir = "DESC"
		}
		parts = append(parts, sf.Name+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// put upserts one row: document plus every secondary column, atomically.
// Runs on the transaction's connection; all writes go through a Txn.
func (e *Engine) put(tx *sql.Tx, ks types.KindSchema, handle string, raw []byte, doc types.Document) error {
	values, err := e.columnValues(ks, doc)
	if err != nil {
		return err
	}
	args := append([]any{handle, string(raw)}, values...)
	if _, err := tx.Exec(upsertKindRow(ks), args...); err != nil {
		if isConflict(err) {
			return fmt.Errorf("%w: %s %s: %v", types.ErrConflict, ks.Kind, handle, err)
		}
		return fmt.Errorf("writing %s %s: %w", ks.Kind, handle, err)
	}
	return nil
}

// isConflict recognizes SQLite uniqueness violations (display id clashes
// and raw key clashes).
func isConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// columnValues projects the declared secondary fields out of a document,
// aligned with ks.Secondary. A missing or type-mismatched field projects
// to NULL; the projection is the single source of column values for
// commits, rebuilds, and the integrity check, so all three agree.
func (e *Engine) columnValues(ks types.KindSchema, doc types.Document) ([]any, error) {
	values := make([]any, len(ks.Secondary))
	for i, sf := range ks.Secondary {
		r, err := e.paths.Get(sf.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
		}
		v, ok := r(doc)
		if !ok {
			continue
		}
		values[i] = scalarValue(sf, v)
	}
	return values, nil
}

// scalarValue converts one extracted document value to the column's
// scalar type. Unconvertible values become NULL rather than failing the
// whole commit.
func scalarValue(sf types.SecondaryField, v any) any {
	switch sf.Type {
	case types.TypeText:
		s, ok := textValue(v)
		if !ok {
			return nil
		}
		if sf.Fold {
			return strings.ToLower(s)
		}
		return s
	case types.TypeInteger:
		n, ok := intValue(v)
		if !ok {
			return nil
		}
		return n
	case types.TypeReal:
		f, ok := realValue(v)
		if !ok {
			return nil
		}
		return f
	}
	return nil
}

// textValue converts to text the way TEXT column affinity does: numbers
// become their literal form.
func textValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	}
	return "", false
}

func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func realValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
