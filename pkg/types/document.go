package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Document is the self-describing structural form of a primary object:
// field name to string, bool, number, list, or nested document. Numbers
// decoded from storage are json.Number so that re-encoding preserves the
// original literal.
type Document = map[string]any

// Reserved field names present on every primary object.
const (
	FieldHandle    = "handle"
	FieldDisplayID = "display_id"
	FieldChange    = "change"
)

// Reference field names. A nested document carrying both of these string
// fields is a handle-reference to another primary object.
const (
	FieldRefKind   = "ref_kind"
	FieldRefHandle = "ref_handle"
)

// ObjectRef identifies a primary object by kind and handle.
type ObjectRef struct {
	Kind   string
	Handle string
}

// NewHandle mints a new object handle. Handles are UUID v7 strings: opaque,
// globally unique, and roughly time-ordered.
func NewHandle() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Ref builds a handle-reference document.
func Ref(kind, handle string) Document {
	return Document{FieldRefKind: kind, FieldRefHandle: handle}
}

// Encode serializes a document to its canonical form: JSON with sorted
// keys. Two encodings of logically equal documents are byte-identical,
// which the undo log and the idempotent-commit check rely on.
func Encode(doc Document) ([]byte, error) {
	if err := checkValue(doc, ""); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return data, nil
}

// Decode parses a canonical serialization back into a document, validating
// that every value is a string, bool, number, list, or nested document.
// Numbers come back as json.Number, so Encode(Decode(b)) == b for any b
// produced by Encode.
func Decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &DocumentError{Reason: err.Error()}
	}
	if err := checkValue(doc, ""); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkValue walks a value and rejects anything outside the document
// grammar, naming the offending field path.
func checkValue(v any, path string) error {
	switch val := v.(type) {
	case string, bool, json.Number, int, int64, float64:
		return nil
	case []any:
		for i, item := range val {
			if err := checkValue(item, childPath(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for key, item := range val {
			if key == "" {
				return &DocumentError{Path: path, Reason: "empty field name"}
			}
			if err := checkValue(item, childPath(path, key)); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return &DocumentError{Path: path, Reason: "null value"}
	default:
		return &DocumentError{Path: path, Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// Handle returns the document's handle field, or "" when absent.
func Handle(doc Document) string {
	s, _ := doc[FieldHandle].(string)
	return s
}

// DisplayID returns the document's display id field, or "" when absent.
func DisplayID(doc Document) string {
	s, _ := doc[FieldDisplayID].(string)
	return s
}

// Change returns the document's change timestamp (epoch seconds), or 0.
func Change(doc Document) int64 {
	switch v := doc[FieldChange].(type) {
	case json.Number:
		n, _ := v.Int64()
		return n
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// References walks the document recursively and returns the deduplicated
// set of handle-references it embeds, in deterministic order. A reference
// is any nested document carrying both ref_kind and ref_handle strings;
// references are themselves walked, since attribute lists on a reference
// can embed further references.
func References(doc Document) []ObjectRef {
	seen := make(map[ObjectRef]bool)
	collectRefs(doc, seen)
	refs := make([]ObjectRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Handle < refs[j].Handle
	})
	return refs
}

func collectRefs(v any, seen map[ObjectRef]bool) {
	switch val := v.(type) {
	case map[string]any:
		kind, kok := val[FieldRefKind].(string)
		handle, hok := val[FieldRefHandle].(string)
		if kok && hok && kind != "" && handle != "" {
			seen[ObjectRef{Kind: kind, Handle: handle}] = true
		}
		for _, item := range val {
			collectRefs(item, seen)
		}
	case []any:
		for _, item := range val {
			collectRefs(item, seen)
		}
	}
}

// CloneDocument returns a deep copy of a document. Scalars are immutable,
// so only maps and lists are copied.
func CloneDocument(doc Document) Document {
	return cloneValue(doc).(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
