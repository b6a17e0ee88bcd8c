package metadata

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// TypeMapping describes how one Go value type is represented by the
// store: the store-side type name, the Go type it maps to, and optional
// conversion functions between raw store values and Go values.
//
// Mappings are shared by pointer across every expression of the same
// mapped type. They are never copied or mutated per-expression; a nil
// converter means the raw value is already the Go value.
type TypeMapping struct {
	// StoreType is the store-side type name (e.g. "TEXT", "INTEGER").
	StoreType string

	// GoType is the Go value type this mapping represents.
	GoType reflect.Type

	// FromStore converts a raw store value into the Go value.
	// Never invoked on nil raw values - the shaper short-circuits
	// nulls before the converter runs.
	FromStore func(raw any) (any, error)

	// ToStore converts a Go value into the raw store value used for
	// parameters and literals.
	ToStore func(v any) (any, error)

	// Equal reports value equality under this mapping. Nil means
	// ordinary == comparison is correct.
	Equal func(a, b any) bool
}

// Convert applies FromStore if present, otherwise returns raw as-is.
func (m *TypeMapping) Convert(raw any) (any, error) {
	if m == nil || m.FromStore == nil {
		return raw, nil
	}
	return m.FromStore(raw)
}

// ConvertBack applies ToStore if present, otherwise returns v as-is.
func (m *TypeMapping) ConvertBack(v any) (any, error) {
	if m == nil || m.ToStore == nil {
		return v, nil
	}
	return m.ToStore(v)
}

// TypeMappingSource resolves the TypeMapping for a Go type. One source
// is built per model; lookups share the same mapping pointers.
type TypeMappingSource struct {
	byType map[reflect.Type]*TypeMapping
}

// NewTypeMappingSource creates a source seeded with the builtin
// mappings (string, int64, float64, bool, time.Time, uuid.UUID, []byte).
func NewTypeMappingSource() *TypeMappingSource {
	s := &TypeMappingSource{byType: make(map[reflect.Type]*TypeMapping)}
	for _, m := range builtinMappings() {
		s.byType[m.GoType] = m
	}
	return s
}

// Register adds or replaces the mapping for its Go type.
func (s *TypeMappingSource) Register(m *TypeMapping) {
	s.byType[m.GoType] = m
}

// FindMapping returns the mapping for t, or nil if no mapping is
// registered. Callers treat nil as "mapping inferred later" - only the
// SQL generator requires a concrete mapping.
func (s *TypeMappingSource) FindMapping(t reflect.Type) *TypeMapping {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return s.byType[t]
}

// BoolMapping returns the builtin bool mapping. Comparison and logical
// expressions always carry this mapping on their result.
func (s *TypeMappingSource) BoolMapping() *TypeMapping {
	return s.byType[reflect.TypeOf(false)]
}

func builtinMappings() []*TypeMapping {
	return []*TypeMapping{
		{StoreType: "TEXT", GoType: reflect.TypeOf("")},
		{StoreType: "INTEGER", GoType: reflect.TypeOf(int64(0)), FromStore: rawToInt64},
		{StoreType: "REAL", GoType: reflect.TypeOf(float64(0))},
		{StoreType: "INTEGER", GoType: reflect.TypeOf(false), FromStore: rawToBool, ToStore: boolToRaw},
		{StoreType: "TEXT", GoType: reflect.TypeOf(time.Time{}), FromStore: rawToTime, ToStore: timeToRaw},
		{StoreType: "TEXT", GoType: reflect.TypeOf(uuid.UUID{}), FromStore: rawToUUID, ToStore: uuidToRaw},
		{StoreType: "BLOB", GoType: reflect.TypeOf([]byte(nil))},
	}
}

func rawToInt64(raw any) (any, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		// SQLite reports INTEGER columns read through JSON as float64.
		return int64(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int64", raw)
	}
}

func rawToBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", raw)
	}
}

func boolToRaw(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", v)
	}
	if b {
		return int64(1), nil
	}
	return int64(0), nil
}

func rawToTime(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", v, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to time.Time", raw)
	}
}

func timeToRaw(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", v)
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

func rawToUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", v, err)
		}
		return id, nil
	case []byte:
		id, err := uuid.FromBytes(v)
		if err != nil {
			return nil, fmt.Errorf("uuid from bytes: %w", err)
		}
		return id, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to uuid.UUID", raw)
	}
}

func uuidToRaw(v any) (any, error) {
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("expected uuid.UUID, got %T", v)
	}
	return id.String(), nil
}
