package types

import (
	"fmt"
	"regexp"
)

// ScalarType is the storage type of a projected column.
type ScalarType string

const (
	TypeText    ScalarType = "TEXT"
	TypeInteger ScalarType = "INTEGER"
	TypeReal    ScalarType = "REAL"
)

// SecondaryField declares one document field mirrored into a real scalar
// column so it can be filtered and sorted without decoding the document.
type SecondaryField struct {
	// Name is the column name, and the short name queries may use.
	Name string
	// Path is the dotted field path extracted from the document. Paths may
	// traverse into a list element by numeric index, e.g.
	// "primary_name.surname_list.0.surname".
	Path string
	// Type is the scalar column type.
	Type ScalarType
	// Indexed requests an index on the column.
	Indexed bool
	// Unique requests a unique index. Used for display ids, which are
	// unique within their kind.
	Unique bool
	// Fold stores the value case-folded, making the column usable as a
	// collation sort key. Fold columns are recomputed wholesale on batch
	// commits.
	Fold bool
}

// KindSchema declares the storage schema of one object kind.
type KindSchema struct {
	Kind       string
	PrimaryKey string // field path of the handle
	Secondary  []SecondaryField
}

// Projected returns the secondary field matching the given query field,
// which may be either the declared column name or the full field path.
func (ks KindSchema) Projected(field string) (SecondaryField, bool) {
	for _, sf := range ks.Secondary {
		if sf.Name == field || sf.Path == field {
			return sf, true
		}
	}
	return SecondaryField{}, false
}

// Registry is the set of kind schemas an engine serves. It is a plain
// value handed to the engine at construction; separate engine instances
// never share registry state.
type Registry struct {
	kinds map[string]KindSchema
	order []string
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewRegistry builds a registry from kind schemas, validating that kind
// names and column names are safe SQL identifiers and that paths are
// non-empty. Column names become part of DDL and query text, so nothing
// user-controlled may ever enter a schema.
func NewRegistry(schemas ...KindSchema) (Registry, error) {
	r := Registry{kinds: make(map[string]KindSchema, len(schemas))}
	for _, ks := range schemas {
		if !identRe.MatchString(ks.Kind) {
			return Registry{}, fmt.Errorf("invalid kind name %q", ks.Kind)
		}
		if _, dup := r.kinds[ks.Kind]; dup {
			return Registry{}, fmt.Errorf("duplicate kind %q", ks.Kind)
		}
		if ks.PrimaryKey == "" {
			return Registry{}, fmt.Errorf("kind %q: primary key path must not be empty", ks.Kind)
		}
		names := make(map[string]bool, len(ks.Secondary))
		for _, sf := range ks.Secondary {
			if !identRe.MatchString(sf.Name) {
				return Registry{}, fmt.Errorf("kind %q: invalid column name %q", ks.Kind, sf.Name)
			}
			if names[sf.Name] {
				return Registry{}, fmt.Errorf("kind %q: duplicate column %q", ks.Kind, sf.Name)
			}
			names[sf.Name] = true
			if sf.Path == "" {
				return Registry{}, fmt.Errorf("kind %q: column %q has empty field path", ks.Kind, sf.Name)
			}
			switch sf.Type {
			case TypeText, TypeInteger, TypeReal:
			default:
				return Registry{}, fmt.Errorf("kind %q: column %q has unknown type %q", ks.Kind, sf.Name, sf.Type)
			}
		}
		r.kinds[ks.Kind] = ks
		r.order = append(r.order, ks.Kind)
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. For static schemas.
func MustRegistry(schemas ...KindSchema) Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Kinds returns the registered kind names in registration order.
func (r Registry) Kinds() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schema returns the schema for a kind.
func (r Registry) Schema(kind string) (KindSchema, bool) {
	ks, ok := r.kinds[kind]
	return ks, ok
}

// SecondaryFields returns the declared secondary fields of a kind.
func (r Registry) SecondaryFields(kind string) []SecondaryField {
	return r.kinds[kind].Secondary
}

// IndexedFields returns the field paths of a kind that carry an index.
func (r Registry) IndexedFields(kind string) []string {
	var out []string
	for _, sf := range r.kinds[kind].Secondary {
		if sf.Indexed || sf.Unique {
			out = append(out, sf.Path)
		}
	}
	return out
}

// PrimaryKey returns the primary key field path of a kind, or "".
func (r Registry) PrimaryKey(kind string) string {
	return r.kinds[kind].PrimaryKey
}

// baseFields are the secondary fields every kind projects.
func baseFields() []SecondaryField {
	return []SecondaryField{
		{Name: "display_id", Path: FieldDisplayID, Type: TypeText, Unique: true},
		{Name: "change", Path: FieldChange, Type: TypeInteger, Indexed: true},
	}
}

func withBase(extra ...SecondaryField) []SecondaryField {
	return append(baseFields(), extra...)
}

// DefaultRegistry declares the genealogical schema: the ten primary object
// kinds with their curated secondary fields. Fields outside this set (note
// text, attribute lists, free-form search targets) are reachable only
// through the fallback query path.
func DefaultRegistry() Registry {
	return MustRegistry(
		KindSchema{
			Kind:       KindPerson,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "surname", Path: "primary_name.surname_list.0.surname", Type: TypeText, Indexed: true},
				SecondaryField{Name: "given_name", Path: "primary_name.first_name", Type: TypeText},
				SecondaryField{Name: "gender", Path: "gender", Type: TypeInteger},
				SecondaryField{Name: "surname_sort", Path: "primary_name.surname_list.0.surname", Type: TypeText, Indexed: true, Fold: true},
			),
		},
		KindSchema{
			Kind:       KindFamily,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "father_handle", Path: "father.ref_handle", Type: TypeText, Indexed: true},
				SecondaryField{Name: "mother_handle", Path: "mother.ref_handle", Type: TypeText, Indexed: true},
			),
		},
		KindSchema{
			Kind:       KindEvent,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "event_type", Path: "type", Type: TypeText, Indexed: true},
				SecondaryField{Name: "date_year", Path: "date.year", Type: TypeInteger},
				SecondaryField{Name: "description", Path: "description", Type: TypeText},
			),
		},
		KindSchema{
			Kind:       KindPlace,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "title", Path: "title", Type: TypeText, Indexed: true},
				SecondaryField{Name: "code", Path: "code", Type: TypeText},
			),
		},
		KindSchema{
			Kind:       KindSource,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "title", Path: "title", Type: TypeText, Indexed: true},
				SecondaryField{Name: "author", Path: "author", Type: TypeText},
				SecondaryField{Name: "abbrev", Path: "abbrev", Type: TypeText},
			),
		},
		KindSchema{
			Kind:       KindCitation,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "page", Path: "page", Type: TypeText},
				SecondaryField{Name: "confidence", Path: "confidence", Type: TypeInteger},
				SecondaryField{Name: "source_handle", Path: "source.ref_handle", Type: TypeText, Indexed: true},
			),
		},
		KindSchema{
			Kind:       KindRepository,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "name", Path: "name", Type: TypeText, Indexed: true},
				SecondaryField{Name: "repo_type", Path: "type", Type: TypeText},
			),
		},
		KindSchema{
			Kind:       KindMedia,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "path", Path: "path", Type: TypeText},
				SecondaryField{Name: "mime", Path: "mime", Type: TypeText},
				SecondaryField{Name: "description", Path: "description", Type: TypeText},
			),
		},
		KindSchema{
			Kind:       KindNote,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "note_type", Path: "type", Type: TypeText},
			),
		},
		KindSchema{
			Kind:       KindTag,
			PrimaryKey: FieldHandle,
			Secondary: withBase(
				SecondaryField{Name: "name", Path: "name", Type: TypeText, Indexed: true},
				SecondaryField{Name: "priority", Path: "priority", Type: TypeInteger},
			),
		},
	)
}
