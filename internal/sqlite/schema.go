package sqlite

import (
	"fmt"
	"strings"

	"github.com/rootsmith/lineage/pkg/types"
)

// Fixed column names shared by every kind table.
const (
	colHandle = "handle"
	colDoc    = "doc"
)

// DDL for the tables that exist independently of the registry.
const (
	createReference = `CREATE TABLE IF NOT EXISTS reference (
    obj_handle TEXT NOT NULL,
    obj_kind TEXT NOT NULL,
    ref_handle TEXT NOT NULL,
    ref_kind TEXT NOT NULL,
    PRIMARY KEY (obj_handle, ref_handle)
);`

	idxReferenceRef = `CREATE INDEX IF NOT EXISTS idx_reference_ref ON reference(ref_handle);`

	createMetadata = `CREATE TABLE IF NOT EXISTS metadata (
    setting TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// createKindTable builds the CREATE TABLE statement for one kind: handle
// primary key, the serialized document column, and one column per declared
// secondary field. Identifiers come from the validated registry, never
// from callers.
func createKindTable(ks types.KindSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", ks.Kind)
	fmt.Fprintf(&b, "    %s TEXT PRIMARY KEY,\n", colHandle)
	fmt.Fprintf(&b, "    %s TEXT NOT NULL", colDoc)
	for _, sf := range ks.Secondary {
		fmt.Fprintf(&b, ",\n    %s %s", sf.Name, sf.Type)
	}
	b.WriteString("\n);")
	return b.String()
}

// addColumn builds the ALTER statement adding one secondary column to a
// live table.
func addColumn(kind string, sf types.SecondaryField) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", kind, sf.Name, sf.Type)
}

// kindIndexes builds the idempotent index statements for one kind.
func kindIndexes(ks types.KindSchema) []string {
	var out []string
	for _, sf := range ks.Secondary {
		switch {
		case sf.Unique:
			out = append(out, fmt.Sprintf(
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);",
				ks.Kind, sf.Name, ks.Kind, sf.Name))
		case sf.Indexed:
			out = append(out, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);",
				ks.Kind, sf.Name, ks.Kind, sf.Name))
		}
	}
	return out
}

// upsertKindRow builds the parameterized upsert replacing the document and
// every secondary column as one row-level operation.
func upsertKindRow(ks types.KindSchema) string {
	cols := []string{colHandle, colDoc}
	for _, sf := range ks.Secondary {
		cols = append(cols, sf.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	var sets []string
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		ks.Kind, strings.Join(cols, ", "), placeholders, colHandle, strings.Join(sets, ", "))
}

// updateColumnsRow builds the parameterized statement recomputing every
// secondary column of one row, used by migration rebuilds.
func updateColumnsRow(ks types.KindSchema) string {
	var sets []string
	for _, sf := range ks.Secondary {
		sets = append(sets, sf.Name+" = ?")
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		ks.Kind, strings.Join(sets, ", "), colHandle)
}
