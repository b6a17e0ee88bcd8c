// Package querydesc defines the YAML query description format and its
// translation into a shaped query. The CLI and the conformance harness
// both consume it.
package querydesc

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/querytree"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/translate"
)

// Error reports a fault in the query description itself, as opposed to
// a translation error raised by the query pipeline.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func descErrorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// QueryFile is the YAML description of one query over an entity type.
//
//	entity: Customer
//	where:
//	  - property: Age
//	    op: gt
//	    value: 30
//	  - property: Name
//	    op: contains
//	    value: "Ad"
//	orderBy:
//	  - property: Name
//	  - property: Age
//	    descending: true
//	skip: 2
//	take: 5
//	parameters:
//	  ages: [30, 40]
type QueryFile struct {
	Entity      string           `yaml:"entity" json:"entity"`
	Where       []WhereClause    `yaml:"where,omitempty" json:"where,omitempty"`
	OrderBy     []OrderingClause `yaml:"orderBy,omitempty" json:"orderBy,omitempty"`
	Distinct    bool             `yaml:"distinct,omitempty" json:"distinct,omitempty"`
	Skip        *int             `yaml:"skip,omitempty" json:"skip,omitempty"`
	Take        *int             `yaml:"take,omitempty" json:"take,omitempty"`
	Cardinality string           `yaml:"cardinality,omitempty" json:"cardinality,omitempty"` // "", "many", "single", "singleOrDefault"
	Parameters  map[string]any   `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// WhereClause is one predicate over a root entity property. Clauses
// are AND-combined.
type WhereClause struct {
	Property string `yaml:"property" json:"property"`
	Op       string `yaml:"op" json:"op"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`
	Values   []any  `yaml:"values,omitempty" json:"values,omitempty"` // for op: in
	Param    string `yaml:"param,omitempty" json:"param,omitempty"`   // deferred list for op: in
}

// OrderingClause is one ordering key.
type OrderingClause struct {
	Property   string `yaml:"property" json:"property"`
	Descending bool   `yaml:"descending,omitempty" json:"descending,omitempty"`
}

// Load parses a YAML query description file.
func Load(path string) (*QueryFile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, descErrorf("reading query file: %v", err)
	}
	return Parse(src)
}

// Parse parses a YAML query description.
func Parse(src []byte) (*QueryFile, error) {
	var qf QueryFile
	if err := yaml.Unmarshal(src, &qf); err != nil {
		return nil, descErrorf("parsing query description: %v", err)
	}
	if qf.Entity == "" {
		return nil, descErrorf("query description must name an entity")
	}
	return &qf, nil
}

// Build translates the description into a shaped query over the model.
func (qf *QueryFile) Build(model *metadata.Model, factory *sqlexpr.Factory) (*querytree.ShapedQuery, error) {
	et := model.Entity(qf.Entity)
	if et == nil {
		return nil, descErrorf("unknown entity %q", qf.Entity)
	}

	b, err := querytree.FromEntity(factory, et)
	if err != nil {
		return nil, err
	}
	registry := translate.NewRegistry(factory)

	for _, w := range qf.Where {
		pred, err := qf.buildClause(b, et, factory, registry, w)
		if err != nil {
			return nil, err
		}
		if err := b.Where(pred); err != nil {
			return nil, err
		}
	}

	for i, o := range qf.OrderBy {
		key, err := b.Property(o.Property)
		if err != nil {
			return nil, err
		}
		switch {
		case i == 0 && o.Descending:
			err = b.OrderByDescending(key)
		case i == 0:
			err = b.OrderBy(key)
		case o.Descending:
			err = b.ThenByDescending(key)
		default:
			err = b.ThenBy(key)
		}
		if err != nil {
			return nil, err
		}
	}

	if qf.Distinct {
		if err := b.Distinct(); err != nil {
			return nil, err
		}
	}
	if qf.Skip != nil {
		if err := b.Skip(*qf.Skip); err != nil {
			return nil, err
		}
	}
	if qf.Take != nil {
		if err := b.Take(*qf.Take); err != nil {
			return nil, err
		}
	}

	switch qf.Cardinality {
	case "", "many":
	case "single":
		b.Single()
	case "singleOrDefault":
		b.SingleOrDefault()
	default:
		return nil, descErrorf("unknown cardinality %q", qf.Cardinality)
	}

	return b.Shaped(), nil
}

func (qf *QueryFile) buildClause(
	b *querytree.Builder,
	et *metadata.EntityType,
	f *sqlexpr.Factory,
	registry *translate.Registry,
	w WhereClause,
) (sqlexpr.Expression, error) {
	col, err := b.Property(w.Property)
	if err != nil {
		return nil, err
	}
	prop := et.Property(w.Property)

	constant := func(v any) (sqlexpr.Expression, error) {
		coerced, err := coerceValue(prop, v)
		if err != nil {
			return nil, descErrorf("property %s: %v", w.Property, err)
		}
		return f.TypedConstant(coerced, col.Mapping()), nil
	}

	switch w.Op {
	case "eq", "ne", "gt", "ge", "lt", "le":
		v, err := constant(w.Value)
		if err != nil {
			return nil, err
		}
		switch w.Op {
		case "eq":
			return f.Equal(col, v), nil
		case "ne":
			return f.NotEqual(col, v), nil
		case "gt":
			return f.GreaterThan(col, v), nil
		case "ge":
			return f.GreaterOrEqual(col, v), nil
		case "lt":
			return f.LessThan(col, v), nil
		default:
			return f.LessOrEqual(col, v), nil
		}
	case "isNull":
		return f.IsNull(col), nil
	case "isNotNull":
		return f.IsNotNull(col), nil
	case "in":
		if w.Param != "" {
			raw, ok := qf.Parameters[w.Param]
			if !ok {
				return nil, descErrorf("op in references undefined parameter %q", w.Param)
			}
			list, ok := raw.([]any)
			if !ok {
				return nil, descErrorf("parameter %q must be a list", w.Param)
			}
			// Coerce list elements up front so the deferred expansion
			// sees the property's Go values.
			coerced := make([]any, len(list))
			for i, item := range list {
				if item == nil {
					continue
				}
				v, err := coerceValue(prop, item)
				if err != nil {
					return nil, descErrorf("parameter %q: %v", w.Param, err)
				}
				coerced[i] = v
			}
			qf.Parameters[w.Param] = coerced
			return f.InParameter(col, f.Parameter(w.Param, nil), false), nil
		}
		values := make([]sqlexpr.Expression, 0, len(w.Values))
		for _, raw := range w.Values {
			v, err := constant(raw)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return f.InValues(col, values, false), nil
	case "contains", "startsWith", "endsWith":
		v, err := constant(w.Value)
		if err != nil {
			return nil, err
		}
		method := map[string]string{
			"contains":   "Contains",
			"startsWith": "StartsWith",
			"endsWith":   "EndsWith",
		}[w.Op]
		return registry.RequireMethod(col, method, []sqlexpr.Expression{v})
	default:
		return nil, descErrorf("unknown operator %q", w.Op)
	}
}

// coerceValue converts a YAML scalar into the property's Go value.
func coerceValue(prop *metadata.Property, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("null comparison value (use isNull)")
	}
	if prop == nil {
		return v, nil
	}
	switch prop.GoType {
	case reflect.TypeOf(int64(0)):
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
	case reflect.TypeOf(float64(0)):
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case reflect.TypeOf(uuid.UUID{}):
		if s, ok := v.(string); ok {
			return uuid.Parse(s)
		}
	case reflect.TypeOf(time.Time{}):
		if s, ok := v.(string); ok {
			return time.Parse(time.RFC3339Nano, s)
		}
	case reflect.TypeOf(""):
		if s, ok := v.(string); ok {
			return s, nil
		}
	case reflect.TypeOf(false):
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("value %v (%T) does not fit type %s", v, v, prop.GoType)
}
