package sqlexpr

// RewriteFunc transforms one node. Returning the argument unchanged
// means "no change here"; Rewrite then keeps the parent's identity too
// unless a sibling changed.
type RewriteFunc func(Expression) (Expression, error)

// Rewrite applies fn to every node in depth-first, bottom-up order.
// A parent is reallocated only when at least one child changed, so an
// untouched subtree keeps pointer identity with the input.
func Rewrite(e Expression, fn RewriteFunc) (Expression, error) {
	if e == nil {
		return nil, nil
	}
	rewritten, err := rewriteChildren(e, fn)
	if err != nil {
		return nil, err
	}
	return fn(rewritten)
}

func rewriteChildren(e Expression, fn RewriteFunc) (Expression, error) {
	switch x := e.(type) {
	case *Column, *Constant, *Parameter, *EntityProjection:
		return e, nil

	case *Binary:
		left, err := Rewrite(x.Left, fn)
		if err != nil {
			return nil, err
		}
		right, err := Rewrite(x.Right, fn)
		if err != nil {
			return nil, err
		}
		if left == x.Left && right == x.Right {
			return x, nil
		}
		return &Binary{Op: x.Op, Left: left, Right: right, typ: x.typ, mapping: x.mapping}, nil

	case *Unary:
		operand, err := Rewrite(x.Operand, fn)
		if err != nil {
			return nil, err
		}
		if operand == x.Operand {
			return x, nil
		}
		return &Unary{Op: x.Op, Operand: operand, typ: x.typ, mapping: x.mapping}, nil

	case *Function:
		args, changed, err := rewriteSlice(x.Args, fn)
		if err != nil {
			return nil, err
		}
		if !changed {
			return x, nil
		}
		return &Function{Name: x.Name, Args: args, typ: x.typ, mapping: x.mapping}, nil

	case *Like:
		match, err := Rewrite(x.Match, fn)
		if err != nil {
			return nil, err
		}
		pattern, err := Rewrite(x.Pattern, fn)
		if err != nil {
			return nil, err
		}
		escape := x.Escape
		if escape != nil {
			escape, err = Rewrite(escape, fn)
			if err != nil {
				return nil, err
			}
		}
		if match == x.Match && pattern == x.Pattern && escape == x.Escape {
			return x, nil
		}
		return &Like{Match: match, Pattern: pattern, Escape: escape, mapping: x.mapping}, nil

	case *Exists:
		sub, err := x.Subquery.VisitChildren(fn)
		if err != nil {
			return nil, err
		}
		if sub == x.Subquery {
			return x, nil
		}
		return &Exists{Subquery: sub, Negated: x.Negated, mapping: x.mapping}, nil

	case *In:
		item, err := Rewrite(x.Item, fn)
		if err != nil {
			return nil, err
		}
		values, changed, err := rewriteSlice(x.Values, fn)
		if err != nil {
			return nil, err
		}
		param := x.ValuesParameter
		if param != nil {
			pe, err := Rewrite(param, fn)
			if err != nil {
				return nil, err
			}
			if np, ok := pe.(*Parameter); ok {
				param = np
			}
		}
		sub := x.Subquery
		if sub != nil {
			sub, err = sub.VisitChildren(fn)
			if err != nil {
				return nil, err
			}
		}
		if item == x.Item && !changed && param == x.ValuesParameter && sub == x.Subquery {
			return x, nil
		}
		return &In{
			Item:            item,
			Values:          values,
			ValuesParameter: param,
			Subquery:        sub,
			Negated:         x.Negated,
			mapping:         x.mapping,
		}, nil

	case *Case:
		changed := false
		operand := x.Operand
		var err error
		if operand != nil {
			operand, err = Rewrite(operand, fn)
			if err != nil {
				return nil, err
			}
			changed = changed || operand != x.Operand
		}
		whens := x.Whens
		var newWhens []CaseWhen
		for i, w := range x.Whens {
			test, err := Rewrite(w.Test, fn)
			if err != nil {
				return nil, err
			}
			result, err := Rewrite(w.Result, fn)
			if err != nil {
				return nil, err
			}
			if newWhens == nil && (test != w.Test || result != w.Result) {
				newWhens = append([]CaseWhen(nil), x.Whens[:i]...)
			}
			if newWhens != nil {
				newWhens = append(newWhens, CaseWhen{Test: test, Result: result})
			}
		}
		if newWhens != nil {
			whens = newWhens
			changed = true
		}
		elseExpr := x.Else
		if elseExpr != nil {
			elseExpr, err = Rewrite(elseExpr, fn)
			if err != nil {
				return nil, err
			}
			changed = changed || elseExpr != x.Else
		}
		if !changed {
			return x, nil
		}
		return &Case{Operand: operand, Whens: whens, Else: elseExpr, typ: x.typ, mapping: x.mapping}, nil

	case *Ordering:
		inner, err := Rewrite(x.Expr, fn)
		if err != nil {
			return nil, err
		}
		if inner == x.Expr {
			return x, nil
		}
		return &Ordering{Expr: inner, Ascending: x.Ascending}, nil

	case *Projection:
		inner, err := Rewrite(x.Expr, fn)
		if err != nil {
			return nil, err
		}
		if inner == x.Expr {
			return x, nil
		}
		return &Projection{Expr: inner, Alias: x.Alias}, nil
	}
	return e, nil
}

func rewriteSlice(in []Expression, fn RewriteFunc) ([]Expression, bool, error) {
	var out []Expression
	for i, e := range in {
		ne, err := Rewrite(e, fn)
		if err != nil {
			return nil, false, err
		}
		if out == nil && ne != e {
			out = append([]Expression(nil), in[:i]...)
		}
		if out != nil {
			out = append(out, ne)
		}
	}
	if out == nil {
		return in, false, nil
	}
	return out, true, nil
}
