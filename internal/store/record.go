package store

import (
	"encoding/json"
	"fmt"
)

// Record gives keyed and positional access to one raw query result.
// Field names are the projection aliases the SQL generator emitted.
type Record interface {
	// Field returns the value under a result field name. The second
	// result is false when the field is absent (absent and null are
	// distinct: a present null returns (nil, true)).
	Field(name string) (any, bool)

	// Index returns the value at a projection slot position.
	Index(i int) (any, bool)

	// IsNull reports whether the named field is absent or null.
	IsNull(name string) bool
}

// Document is a map-backed Record for nested/owned entity regions and
// for in-memory fakes. Positional access follows no defined order, so
// Index is only valid on documents built with an explicit column list.
type Document map[string]any

func (d Document) Field(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

func (d Document) Index(i int) (any, bool) {
	return nil, false
}

func (d Document) IsNull(name string) bool {
	v, ok := d[name]
	return !ok || v == nil
}

// rowRecord is a Record over one scanned SQL row, preserving column
// order for positional access.
type rowRecord struct {
	columns []string
	values  []any
	byName  map[string]int
}

func newRowRecord(columns []string, values []any) *rowRecord {
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		byName[c] = i
	}
	return &rowRecord{columns: columns, values: values, byName: byName}
}

func (r *rowRecord) Field(name string) (any, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

func (r *rowRecord) Index(i int) (any, bool) {
	if i < 0 || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

func (r *rowRecord) IsNull(name string) bool {
	v, ok := r.Field(name)
	return !ok || v == nil
}

// AsDocument interprets a raw field value as a nested document. Owned
// entities are stored as JSON objects inside their owner's row, so a
// TEXT/BLOB value holding a JSON object decodes into a Document; a
// value that is already a map passes through.
func AsDocument(v any) (Document, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Document:
		return x, nil
	case map[string]any:
		return Document(x), nil
	case []byte:
		return decodeJSONObject(x)
	case string:
		return decodeJSONObject([]byte(x))
	default:
		return nil, fmt.Errorf("cannot interpret %T as nested document", v)
	}
}

func decodeJSONObject(raw []byte) (Document, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode nested document: %w", err)
	}
	return Document(m), nil
}
