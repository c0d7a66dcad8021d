package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/rootsmith/lineage/pkg/types"
)

// updateReferences recomputes the reference rows of one owner: its rows
// are deleted wholesale and reinserted from a fresh walk of the current
// document, never incrementally patched. Runs inside the owner's commit
// transaction.
func (e *Engine) updateReferences(tx *sql.Tx, kind, handle string, doc types.Document) error {
	if _, err := tx.Exec("DELETE FROM reference WHERE obj_handle = ?", handle); err != nil {
		return fmt.Errorf("clearing references of %s: %w", handle, err)
	}
	for _, ref := range types.References(doc) {
		if _, err := tx.Exec(
			"INSERT INTO reference (obj_handle, obj_kind, ref_handle, ref_kind) VALUES (?, ?, ?, ?)",
			handle, kind, ref.Handle, ref.Kind); err != nil {
			return fmt.Errorf("inserting reference %s -> %s: %w", handle, ref.Handle, err)
		}
	}
	return nil
}

// removeReferences drops every reference row owned by handle and every
// row pointing at it, as part of deleting the object.
func (e *Engine) removeReferences(tx *sql.Tx, handle string) error {
	if _, err := tx.Exec(
		"DELETE FROM reference WHERE obj_handle = ? OR ref_handle = ?", handle, handle); err != nil {
		return fmt.Errorf("removing references of %s: %w", handle, err)
	}
	return nil
}

// rebuildReferences regenerates the whole reference table by walking
// every primary object of every kind. Batch commits run this instead of
// per-object maintenance.
func (e *Engine) rebuildReferences(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM reference"); err != nil {
		return fmt.Errorf("clearing reference table: %w", err)
	}
	for _, kind := range e.reg.Kinds() {
		rows, err := tx.Query(fmt.Sprintf("SELECT %s, %s FROM %s", colHandle, colDoc, kind))
		if err != nil {
			return fmt.Errorf("scanning %s for reference rebuild: %w", kind, err)
		}
		type owned struct {
			handle string
			refs   []types.ObjectRef
		}
		var owners []owned
		for rows.Next() {
			var handle, raw string
			if err := rows.Scan(&handle, &raw); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s row: %w", kind, err)
			}
			doc, err := types.Decode([]byte(raw))
			if err != nil {
				e.log.Warn("skipping malformed document during reference rebuild",
					"kind", kind, "handle", handle, "error", err)
				continue
			}
			owners = append(owners, owned{handle: handle, refs: types.References(doc)})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, o := range owners {
			for _, ref := range o.refs {
				if _, err := tx.Exec(
					"INSERT INTO reference (obj_handle, obj_kind, ref_handle, ref_kind) VALUES (?, ?, ?, ?)",
					o.handle, kind, ref.Handle, ref.Kind); err != nil {
					return fmt.Errorf("inserting reference %s -> %s: %w", o.handle, ref.Handle, err)
				}
			}
		}
		e.log.Info("rebuilt references", "kind", kind, "owners", len(owners))
	}
	return nil
}

// rebuildFoldColumns recomputes every collation sort-key column of every
// kind that declares one. Batch commits run this before the reference
// rebuild.
func (e *Engine) rebuildFoldColumns(tx *sql.Tx) error {
	for _, kind := range e.reg.Kinds() {
		ks, _ := e.reg.Schema(kind)
		var folds []types.SecondaryField
		for _, sf := range ks.Secondary {
			if sf.Fold {
				folds = append(folds, sf)
			}
		}
		if len(folds) == 0 {
			continue
		}

		rows, err := tx.Query(fmt.Sprintf("SELECT %s, %s FROM %s", colHandle, colDoc, kind))
		if err != nil {
			return fmt.Errorf("scanning %s for sort-key rebuild: %w", kind, err)
		}
		type keyed struct {
			handle string
			values []any
		}
		var pending []keyed
		for rows.Next() {
			var handle, raw string
			if err := rows.Scan(&handle, &raw); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s row: %w", kind, err)
			}
			doc, err := types.Decode([]byte(raw))
			if err != nil {
				e.log.Warn("skipping malformed document during sort-key rebuild",
					"kind", kind, "handle", handle, "error", err)
				continue
			}
			values := make([]any, len(folds))
			for i, sf := range folds {
				r, err := e.paths.Get(sf.Path)
				if err != nil {
					rows.Close()
					return fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
				}
				if v, ok := r(doc); ok {
					values[i] = scalarValue(sf, v)
				}
			}
			pending = append(pending, keyed{handle: handle, values: values})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		sets := ""
		for i, sf := range folds {
			if i > 0 {
				sets += ", "
			}
			sets += sf.Name + " = ?"
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", kind, sets, colHandle)
		for _, k := range pending {
			args := append(k.values, k.handle)
			if _, err := tx.Exec(stmt, args...); err != nil {
				return fmt.Errorf("rebuilding sort keys of %s %s: %w", kind, k.handle, err)
			}
		}
	}
	return nil
}

// Backlinks returns the owners whose documents reference handle, in
// deterministic order, optionally restricted to owner kinds.
func (e *Engine) Backlinks(handle string, kinds ...string) ([]types.Backlink, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	query := "SELECT obj_kind, obj_handle FROM reference WHERE ref_handle = ?"
	args := []any{handle}
	if len(kinds) > 0 {
		placeholders := ""
		for i, kind := range kinds {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, kind)
		}
		query += " AND obj_kind IN (" + placeholders + ")"
	}
	query += " ORDER BY obj_kind, obj_handle"

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding backlinks of %s: %w", handle, err)
	}
	defer rows.Close()

	var links []types.Backlink
	for rows.Next() {
		var bl types.Backlink
		if err := rows.Scan(&bl.Kind, &bl.Handle); err != nil {
			return nil, fmt.Errorf("scanning backlink: %w", err)
		}
		links = append(links, bl)
	}
	return links, rows.Err()
}
