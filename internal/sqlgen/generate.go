// Package sqlgen lowers a frozen SelectExpression into parameterized
// SQLite SQL.
//
// Values are NEVER interpolated into query text - every constant and
// parameter becomes a ? placeholder with its value in the returned
// argument list, in placeholder order. Output is deterministic for a
// given input tree, which the golden tests rely on.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/entq/internal/sqlexpr"
)

// Generate produces SQL text and ordered arguments for a frozen query.
// Runtime parameters are resolved from params; deferred IN-list
// parameters must have been expanded before generation.
func Generate(sel *sqlexpr.SelectExpression, params map[string]any) (string, []any, error) {
	if sel == nil {
		return "", nil, fmt.Errorf("cannot generate SQL for nil query")
	}
	if !sel.IsFrozen() {
		return "", nil, fmt.Errorf("cannot generate SQL for unfrozen query")
	}
	g := &generator{params: params}
	if err := g.visitSelect(sel); err != nil {
		return "", nil, err
	}
	return g.sb.String(), g.args, nil
}

type generator struct {
	sb     strings.Builder
	args   []any
	params map[string]any
}

func (g *generator) visitSelect(sel *sqlexpr.SelectExpression) error {
	g.sb.WriteString("SELECT ")
	if sel.IsDistinct() {
		g.sb.WriteString("DISTINCT ")
	}

	projections := sel.Projections()
	if len(projections) == 0 {
		return fmt.Errorf("query has no finalized projections; ApplyProjection was not run")
	}
	for i, p := range projections {
		if i > 0 {
			g.sb.WriteString(", ")
		}
		if err := g.visit(p.Expr); err != nil {
			return err
		}
		if col, ok := p.Expr.(*sqlexpr.Column); !ok || col.Name != p.Alias {
			g.sb.WriteString(" AS ")
			g.sb.WriteString(quoteIdent(p.Alias))
		}
	}

	g.sb.WriteString(" FROM ")
	g.sb.WriteString(quoteIdent(sel.Container()))

	if pred := sel.Predicate(); pred != nil {
		g.sb.WriteString(" WHERE ")
		if err := g.visit(pred); err != nil {
			return err
		}
	}

	if orderings := sel.Orderings(); len(orderings) > 0 {
		g.sb.WriteString(" ORDER BY ")
		for i, o := range orderings {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			if err := g.visit(o.Expr); err != nil {
				return err
			}
			if o.Ascending {
				g.sb.WriteString(" ASC")
			} else {
				g.sb.WriteString(" DESC")
			}
		}
	}

	limit, offset := sel.Limit(), sel.Offset()
	if limit != nil || offset != nil {
		g.sb.WriteString(" LIMIT ")
		if limit != nil {
			if err := g.visit(limit); err != nil {
				return err
			}
		} else {
			// SQLite requires a LIMIT clause to carry an OFFSET.
			g.sb.WriteString("-1")
		}
		if offset != nil {
			g.sb.WriteString(" OFFSET ")
			if err := g.visit(offset); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *generator) visit(e sqlexpr.Expression) error {
	switch x := e.(type) {
	case *sqlexpr.Column:
		g.sb.WriteString(quoteIdent(x.Name))
		return nil

	case *sqlexpr.Constant:
		return g.pushArg(x.Value, x)

	case *sqlexpr.Parameter:
		v, ok := g.params[x.Name]
		if !ok {
			return fmt.Errorf("unresolved query parameter %q", x.Name)
		}
		return g.pushArg(v, x)

	case *sqlexpr.Binary:
		return g.visitBinary(x)

	case *sqlexpr.Unary:
		return g.visitUnary(x)

	case *sqlexpr.Function:
		g.sb.WriteString(x.Name)
		g.sb.WriteString("(")
		for i, a := range x.Args {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			if err := g.visit(a); err != nil {
				return err
			}
		}
		g.sb.WriteString(")")
		return nil

	case *sqlexpr.Like:
		if err := g.visit(x.Match); err != nil {
			return err
		}
		g.sb.WriteString(" LIKE ")
		if err := g.visit(x.Pattern); err != nil {
			return err
		}
		if x.Escape != nil {
			g.sb.WriteString(" ESCAPE ")
			if err := g.visit(x.Escape); err != nil {
				return err
			}
		}
		return nil

	case *sqlexpr.Exists:
		if x.Negated {
			g.sb.WriteString("NOT ")
		}
		g.sb.WriteString("EXISTS (")
		if err := g.visitSelect(x.Subquery); err != nil {
			return err
		}
		g.sb.WriteString(")")
		return nil

	case *sqlexpr.In:
		return g.visitIn(x)

	case *sqlexpr.Case:
		return g.visitCase(x)

	case *sqlexpr.Ordering:
		return fmt.Errorf("ordering node outside ORDER BY clause")

	case *sqlexpr.Projection:
		return g.visit(x.Expr)

	case *sqlexpr.EntityProjection:
		return fmt.Errorf("entity projection survived projection finalization")
	}
	return fmt.Errorf("unsupported expression type: %T", e)
}

var binaryOps = map[sqlexpr.BinaryOperator]string{
	sqlexpr.OpEqual:          "=",
	sqlexpr.OpNotEqual:       "<>",
	sqlexpr.OpGreaterThan:    ">",
	sqlexpr.OpGreaterOrEqual: ">=",
	sqlexpr.OpLessThan:       "<",
	sqlexpr.OpLessOrEqual:    "<=",
	sqlexpr.OpAndAlso:        "AND",
	sqlexpr.OpOrElse:         "OR",
	sqlexpr.OpAdd:            "+",
	sqlexpr.OpSubtract:       "-",
	sqlexpr.OpMultiply:       "*",
	sqlexpr.OpDivide:         "/",
	sqlexpr.OpModulo:         "%",
}

func (g *generator) visitBinary(b *sqlexpr.Binary) error {
	if b.Op == sqlexpr.OpCoalesce {
		g.sb.WriteString("COALESCE(")
		if err := g.visit(b.Left); err != nil {
			return err
		}
		g.sb.WriteString(", ")
		if err := g.visit(b.Right); err != nil {
			return err
		}
		g.sb.WriteString(")")
		return nil
	}
	op, ok := binaryOps[b.Op]
	if !ok {
		return fmt.Errorf("unsupported binary operator %d", b.Op)
	}
	g.sb.WriteString("(")
	if err := g.visit(b.Left); err != nil {
		return err
	}
	g.sb.WriteString(" ")
	g.sb.WriteString(op)
	g.sb.WriteString(" ")
	if err := g.visit(b.Right); err != nil {
		return err
	}
	g.sb.WriteString(")")
	return nil
}

func (g *generator) visitUnary(u *sqlexpr.Unary) error {
	switch u.Op {
	case sqlexpr.OpNot:
		g.sb.WriteString("NOT (")
		if err := g.visit(u.Operand); err != nil {
			return err
		}
		g.sb.WriteString(")")
	case sqlexpr.OpNegate:
		g.sb.WriteString("-(")
		if err := g.visit(u.Operand); err != nil {
			return err
		}
		g.sb.WriteString(")")
	case sqlexpr.OpIsNull:
		if err := g.visit(u.Operand); err != nil {
			return err
		}
		g.sb.WriteString(" IS NULL")
	case sqlexpr.OpIsNotNull:
		if err := g.visit(u.Operand); err != nil {
			return err
		}
		g.sb.WriteString(" IS NOT NULL")
	default:
		return fmt.Errorf("unsupported unary operator %d", u.Op)
	}
	return nil
}

func (g *generator) visitIn(in *sqlexpr.In) error {
	if in.ValuesParameter != nil {
		return fmt.Errorf("IN parameter %q was not expanded before generation", in.ValuesParameter.Name)
	}
	if in.Subquery == nil && len(in.Values) == 0 {
		// Empty IN matches nothing; negation matches everything.
		if in.Negated {
			g.sb.WriteString("1 = 1")
		} else {
			g.sb.WriteString("1 = 0")
		}
		return nil
	}
	if err := g.visit(in.Item); err != nil {
		return err
	}
	if in.Negated {
		g.sb.WriteString(" NOT")
	}
	g.sb.WriteString(" IN (")
	if in.Subquery != nil {
		if err := g.visitSelect(in.Subquery); err != nil {
			return err
		}
	} else {
		for i, v := range in.Values {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			if err := g.visit(v); err != nil {
				return err
			}
		}
	}
	g.sb.WriteString(")")
	return nil
}

func (g *generator) visitCase(c *sqlexpr.Case) error {
	g.sb.WriteString("CASE")
	if c.Operand != nil {
		g.sb.WriteString(" ")
		if err := g.visit(c.Operand); err != nil {
			return err
		}
	}
	for _, w := range c.Whens {
		g.sb.WriteString(" WHEN ")
		if err := g.visit(w.Test); err != nil {
			return err
		}
		g.sb.WriteString(" THEN ")
		if err := g.visit(w.Result); err != nil {
			return err
		}
	}
	if c.Else != nil {
		g.sb.WriteString(" ELSE ")
		if err := g.visit(c.Else); err != nil {
			return err
		}
	}
	g.sb.WriteString(" END")
	return nil
}

// pushArg emits a placeholder and appends the store-side value,
// converting through the expression's type mapping when one is set.
func (g *generator) pushArg(v any, e sqlexpr.Expression) error {
	if m := e.Mapping(); m != nil {
		converted, err := m.ConvertBack(v)
		if err != nil {
			return fmt.Errorf("convert parameter value: %w", err)
		}
		v = converted
	}
	g.sb.WriteString("?")
	g.args = append(g.args, v)
	return nil
}

func quoteIdent(name string) string {
	if isPlainIdent(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	// Quote anything that could collide with a keyword.
	switch strings.ToUpper(name) {
	case "SELECT", "FROM", "WHERE", "ORDER", "BY", "LIMIT", "OFFSET", "IN", "LIKE", "CASE", "END", "GROUP":
		return false
	}
	return true
}

// FormatForTrace renders SQL with inlined argument placeholders
// numbered for diagnostics ("?1", "?2"). Never used for execution.
func FormatForTrace(sql string, args []any) string {
	var sb strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			sb.WriteString("?")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	if len(args) == 0 {
		return sb.String()
	}
	sb.WriteString(" -- args: ")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", a)
	}
	return sb.String()
}
