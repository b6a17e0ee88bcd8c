package sqlexpr

import "reflect"

// StructurallyEqual reports whether two expressions are equal node for
// node. Used for projection-slot deduplication and ordering dedup;
// SelectExpression subqueries compare by identity only (two distinct
// subqueries are never considered equal).
func StructurallyEqual(a, b Expression) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch x := a.(type) {
	case *Column:
		y, ok := b.(*Column)
		return ok && x.Name == y.Name
	case *Constant:
		y, ok := b.(*Constant)
		return ok && constantValueEqual(x, y)
	case *Parameter:
		y, ok := b.(*Parameter)
		return ok && x.Name == y.Name
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op &&
			StructurallyEqual(x.Left, y.Left) &&
			StructurallyEqual(x.Right, y.Right)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && StructurallyEqual(x.Operand, y.Operand)
	case *Function:
		y, ok := b.(*Function)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !StructurallyEqual(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case *Like:
		y, ok := b.(*Like)
		return ok && StructurallyEqual(x.Match, y.Match) &&
			StructurallyEqual(x.Pattern, y.Pattern) &&
			optEqual(x.Escape, y.Escape)
	case *Exists:
		y, ok := b.(*Exists)
		return ok && x.Negated == y.Negated && x.Subquery == y.Subquery
	case *In:
		y, ok := b.(*In)
		if !ok || x.Negated != y.Negated || !StructurallyEqual(x.Item, y.Item) {
			return false
		}
		if len(x.Values) != len(y.Values) {
			return false
		}
		for i := range x.Values {
			if !StructurallyEqual(x.Values[i], y.Values[i]) {
				return false
			}
		}
		return optEqual(x.ValuesParameter, y.ValuesParameter) && x.Subquery == y.Subquery
	case *Case:
		y, ok := b.(*Case)
		if !ok || !optEqual(x.Operand, y.Operand) || !optEqual(x.Else, y.Else) ||
			len(x.Whens) != len(y.Whens) {
			return false
		}
		for i := range x.Whens {
			if !StructurallyEqual(x.Whens[i].Test, y.Whens[i].Test) ||
				!StructurallyEqual(x.Whens[i].Result, y.Whens[i].Result) {
				return false
			}
		}
		return true
	case *Ordering:
		y, ok := b.(*Ordering)
		return ok && x.Ascending == y.Ascending && StructurallyEqual(x.Expr, y.Expr)
	case *Projection:
		y, ok := b.(*Projection)
		return ok && x.Alias == y.Alias && StructurallyEqual(x.Expr, y.Expr)
	case *EntityProjection:
		y, ok := b.(*EntityProjection)
		return ok && x.EntityType == y.EntityType
	}
	return false
}

func constantValueEqual(x, y *Constant) bool {
	if m := x.Mapping(); m != nil && m.Equal != nil && m == y.Mapping() {
		return m.Equal(x.Value, y.Value)
	}
	return reflect.DeepEqual(x.Value, y.Value)
}

func optEqual[T Expression](a, b T) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	aNil := !av.IsValid() || av.IsNil()
	bNil := !bv.IsValid() || bv.IsNil()
	if aNil || bNil {
		return aNil == bNil
	}
	return StructurallyEqual(a, b)
}
