package execute

import (
	"fmt"
	"reflect"

	"github.com/roach88/entq/internal/sqlexpr"
)

// ExpandInParameters rewrites every deferred IN-list parameter in the
// query against the actual runtime parameter values. Runs on first
// enumeration, before SQL generation.
//
// The runtime list is partitioned into non-null values and a
// null-presence flag:
//
//   - non-null values remain → IN over just those
//   - nulls present → an IS NULL test on the probe expression,
//     OR-combined with the IN when both apply
//   - empty list, no nulls → a statically-false predicate (empty IN
//     matches nothing)
//
// A negated IN wraps the expanded predicate in NOT.
func ExpandInParameters(sel *sqlexpr.SelectExpression, f *sqlexpr.Factory, params map[string]any) (*sqlexpr.SelectExpression, error) {
	return sel.VisitChildren(func(e sqlexpr.Expression) (sqlexpr.Expression, error) {
		in, ok := e.(*sqlexpr.In)
		if ok && in.ValuesParameter != nil {
			return expandIn(in, f, params)
		}
		return e, nil
	})
}

func expandIn(in *sqlexpr.In, f *sqlexpr.Factory, params map[string]any) (sqlexpr.Expression, error) {
	raw, ok := params[in.ValuesParameter.Name]
	if !ok {
		return nil, fmt.Errorf("unresolved IN-list parameter %q", in.ValuesParameter.Name)
	}
	values, err := asSlice(raw)
	if err != nil {
		return nil, fmt.Errorf("IN-list parameter %q: %w", in.ValuesParameter.Name, err)
	}

	itemMapping := in.Item.Mapping()
	var nonNull []sqlexpr.Expression
	hasNull := false
	for _, v := range values {
		if v == nil {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, f.TypedConstant(v, itemMapping))
	}

	var expanded sqlexpr.Expression
	switch {
	case len(nonNull) > 0 && hasNull:
		expanded = f.OrElse(f.InValues(in.Item, nonNull, false), f.IsNull(in.Item))
	case len(nonNull) > 0:
		expanded = f.InValues(in.Item, nonNull, false)
	case hasNull:
		expanded = f.IsNull(in.Item)
	default:
		expanded = f.Constant(false)
	}
	if in.Negated {
		expanded = f.Not(expanded)
	}
	return expanded, nil
}

func asSlice(raw any) ([]any, error) {
	if vs, ok := raw.([]any); ok {
		return vs, nil
	}
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("expected a slice value, got %T", raw)
	}
	out := make([]any, rv.Len())
	for i := range out {
		v := rv.Index(i)
		if v.Kind() == reflect.Pointer && v.IsNil() {
			out[i] = nil
			continue
		}
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		out[i] = v.Interface()
	}
	return out, nil
}
