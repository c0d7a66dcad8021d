package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rootsmith/lineage/pkg/types"
)

// schemaVersion is written to the metadata table after every successful
// migration pass. Bump when the declared registry grows.
const schemaVersionKey = "schema_version"

const schemaVersion = "1"

// migrate reconciles the live database with the declared registry: it
// creates missing kind tables, adds missing secondary columns, rebuilds
// every secondary column of any altered kind, and creates missing
// indexes. Missing-table creation failures are fatal; column additions
// and rebuilds are logged and re-attempted on next open, leaving the
// database in an explicitly logged partially-migrated state. The pass is
// deliberately not one all-or-nothing transaction.
func (e *Engine) migrate() error {
	for _, stmt := range []string{createReference, idxReferenceRef, createMetadata} {
		if _, err := e.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating system table: %w", err)
		}
	}

	for _, kind := range e.reg.Kinds() {
		ks, _ := e.reg.Schema(kind)
		exists, err := e.tableExists(kind)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := e.db.Exec(createKindTable(ks)); err != nil {
				return fmt.Errorf("creating table %s: %w", kind, err)
			}
			e.log.Info("created table", "kind", kind, "columns", len(ks.Secondary))
		} else if err := e.reconcileColumns(ks); err != nil {
			e.log.Warn("schema migration incomplete; will retry on next open",
				"kind", kind, "error", err)
			continue
		}
		for _, stmt := range kindIndexes(ks) {
			if _, err := e.db.Exec(stmt); err != nil {
				e.log.Warn("creating index failed", "kind", kind, "error", err)
			}
		}
	}

	if _, err := e.db.Exec(
		"INSERT INTO metadata (setting, value) VALUES (?, ?) "+
			"ON CONFLICT(setting) DO UPDATE SET value = excluded.value",
		schemaVersionKey, schemaVersion); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

func (e *Engine) tableExists(name string) (bool, error) {
	var found int
	err := e.db.QueryRow(
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("probing table %s: %w", name, err)
}

// reconcileColumns probes the live table for each declared secondary
// column, adds any that are absent, and on any addition rebuilds every
// secondary column of every row of the kind. Rebuilding all columns, not
// just the new one, keeps the pass conservative and idempotent.
func (e *Engine) reconcileColumns(ks types.KindSchema) error {
	live, err := e.liveColumns(ks.Kind)
	if err != nil {
		return err
	}
	added := 0
	for _, sf := range ks.Secondary {
		if live[sf.Name] {
			continue
		}
		if _, err := e.db.Exec(addColumn(ks.Kind, sf)); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", ks.Kind, sf.Name, err)
		}
		e.log.Info("added column", "kind", ks.Kind, "column", sf.Name)
		added++
	}
	if added == 0 {
		return nil
	}
	return e.rebuildColumns(ks)
}

func (e *Engine) liveColumns(kind string) (map[string]bool, error) {
	rows, err := e.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", kind))
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", kind, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", kind, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// rebuildColumns decodes every existing document of the kind and
// recomputes every secondary column for every row. Malformed documents
// are logged and skipped; they fail that object only.
func (e *Engine) rebuildColumns(ks types.KindSchema) error {
	rows, err := e.db.Query(fmt.Sprintf("SELECT %s, %s FROM %s", colHandle, colDoc, ks.Kind))
	if err != nil {
		return fmt.Errorf("scanning %s for rebuild: %w", ks.Kind, err)
	}
	defer rows.Close()

	type rebuildRow struct {
		handle string
		values []any
	}
	var pending []rebuildRow
	rebuilt, skipped := 0, 0
	for rows.Next() {
		var handle, raw string
		if err := rows.Scan(&handle, &raw); err != nil {
			return fmt.Errorf("scanning %s row: %w", ks.Kind, err)
		}
		doc, err := types.Decode([]byte(raw))
		if err != nil {
			e.log.Warn("skipping malformed document during rebuild",
				"kind", ks.Kind, "handle", handle, "error", err)
			skipped++
			continue
		}
		values, err := e.columnValues(ks, doc)
		if err != nil {
			return fmt.Errorf("projecting %s %s: %w", ks.Kind, handle, err)
		}
		pending = append(pending, rebuildRow{handle: handle, values: values})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	stmt := updateColumnsRow(ks)
	for _, row := range pending {
		args := append(row.values, row.handle)
		if _, err := e.db.Exec(stmt, args...); err != nil {
			return fmt.Errorf("rebuilding %s %s: %w", ks.Kind, row.handle, err)
		}
		rebuilt++
	}
	e.log.Info("rebuilt secondary columns", "kind", ks.Kind, "rows", rebuilt, "skipped", skipped)
	return nil
}
