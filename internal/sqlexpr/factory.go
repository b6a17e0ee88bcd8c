package sqlexpr

import (
	"reflect"

	"github.com/roach88/entq/internal/metadata"
)

// Factory is the single authority for constructing physical expression
// nodes with correct type-mapping propagation. Call sites never
// reimplement the inference rules.
type Factory struct {
	mappings *metadata.TypeMappingSource
}

// NewFactory creates a factory over a model's type mapping source.
func NewFactory(mappings *metadata.TypeMappingSource) *Factory {
	return &Factory{mappings: mappings}
}

// Mappings returns the underlying mapping source.
func (f *Factory) Mappings() *metadata.TypeMappingSource { return f.mappings }

// Column constructs a column node for a property.
func (f *Factory) Column(p *metadata.Property) *Column {
	return &Column{
		Name:     p.StoreName,
		Nullable: p.Nullable,
		typ:      p.GoType,
		mapping:  p.Mapping,
	}
}

// Constant constructs a literal. The mapping is inferred from the
// value's Go type when one is registered.
func (f *Factory) Constant(v any) *Constant {
	var t reflect.Type
	if v != nil {
		t = reflect.TypeOf(v)
	}
	return &Constant{Value: v, typ: t, mapping: f.mappings.FindMapping(t)}
}

// TypedConstant constructs a literal with an explicit mapping.
func (f *Factory) TypedConstant(v any, m *metadata.TypeMapping) *Constant {
	var t reflect.Type
	if v != nil {
		t = reflect.TypeOf(v)
	}
	return &Constant{Value: v, typ: t, mapping: m}
}

// Parameter constructs a deferred runtime parameter.
func (f *Factory) Parameter(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, typ: t, mapping: f.mappings.FindMapping(t)}
}

// Comparison constructors.

func (f *Factory) Equal(l, r Expression) *Binary       { return f.MakeBinary(OpEqual, l, r, nil) }
func (f *Factory) NotEqual(l, r Expression) *Binary    { return f.MakeBinary(OpNotEqual, l, r, nil) }
func (f *Factory) GreaterThan(l, r Expression) *Binary { return f.MakeBinary(OpGreaterThan, l, r, nil) }
func (f *Factory) GreaterOrEqual(l, r Expression) *Binary {
	return f.MakeBinary(OpGreaterOrEqual, l, r, nil)
}
func (f *Factory) LessThan(l, r Expression) *Binary    { return f.MakeBinary(OpLessThan, l, r, nil) }
func (f *Factory) LessOrEqual(l, r Expression) *Binary { return f.MakeBinary(OpLessOrEqual, l, r, nil) }

// Logical constructors.

func (f *Factory) AndAlso(l, r Expression) *Binary { return f.MakeBinary(OpAndAlso, l, r, nil) }
func (f *Factory) OrElse(l, r Expression) *Binary  { return f.MakeBinary(OpOrElse, l, r, nil) }

// Arithmetic constructors. The optional mapping hint wins over operand
// inference.

func (f *Factory) Add(l, r Expression, hint *metadata.TypeMapping) *Binary {
	return f.MakeBinary(OpAdd, l, r, hint)
}
func (f *Factory) Subtract(l, r Expression, hint *metadata.TypeMapping) *Binary {
	return f.MakeBinary(OpSubtract, l, r, hint)
}
func (f *Factory) Multiply(l, r Expression, hint *metadata.TypeMapping) *Binary {
	return f.MakeBinary(OpMultiply, l, r, hint)
}
func (f *Factory) Divide(l, r Expression, hint *metadata.TypeMapping) *Binary {
	return f.MakeBinary(OpDivide, l, r, hint)
}
func (f *Factory) Modulo(l, r Expression, hint *metadata.TypeMapping) *Binary {
	return f.MakeBinary(OpModulo, l, r, hint)
}
func (f *Factory) Coalesce(l, r Expression, hint *metadata.TypeMapping) *Binary {
	return f.MakeBinary(OpCoalesce, l, r, hint)
}

// MakeBinary assigns the result type from the operator class
// (comparison/logical yield bool; arithmetic and coalesce preserve the
// operand type), then applies type-mapping inference:
//
//   - comparison/logical: operands share a mapping inferred from either
//     side (left operand's default as fallback); the result carries the
//     bool mapping.
//   - arithmetic/coalesce: an explicit hint wins, else the mapping is
//     inferred from the operands and shared by operands and result.
func (f *Factory) MakeBinary(op BinaryOperator, l, r Expression, hint *metadata.TypeMapping) *Binary {
	if op.IsComparison() || op.IsLogical() {
		operandMapping := f.inferMapping(l, r)
		return &Binary{
			Op:      op,
			Left:    f.applyMapping(l, operandMapping),
			Right:   f.applyMapping(r, operandMapping),
			typ:     boolType,
			mapping: f.mappings.BoolMapping(),
		}
	}
	mapping := hint
	if mapping == nil {
		mapping = f.inferMapping(l, r)
	}
	typ := l.ValueType()
	if typ == nil {
		typ = r.ValueType()
	}
	return &Binary{
		Op:      op,
		Left:    f.applyMapping(l, mapping),
		Right:   f.applyMapping(r, mapping),
		typ:     typ,
		mapping: mapping,
	}
}

// Not negates a boolean expression.
func (f *Factory) Not(e Expression) *Unary {
	return &Unary{Op: OpNot, Operand: e, typ: boolType, mapping: f.mappings.BoolMapping()}
}

// Negate applies arithmetic negation, preserving operand type/mapping.
func (f *Factory) Negate(e Expression) *Unary {
	return &Unary{Op: OpNegate, Operand: e, typ: e.ValueType(), mapping: e.Mapping()}
}

// IsNull tests an expression for the store null.
func (f *Factory) IsNull(e Expression) *Unary {
	return &Unary{Op: OpIsNull, Operand: e, typ: boolType, mapping: f.mappings.BoolMapping()}
}

// IsNotNull tests an expression for non-null.
func (f *Factory) IsNotNull(e Expression) *Unary {
	return &Unary{Op: OpIsNotNull, Operand: e, typ: boolType, mapping: f.mappings.BoolMapping()}
}

// Function constructs a store function call with an explicit result
// type; the mapping is looked up from the result type unless given.
func (f *Factory) Function(name string, args []Expression, t reflect.Type, hint *metadata.TypeMapping) *Function {
	mapping := hint
	if mapping == nil {
		mapping = f.mappings.FindMapping(t)
	}
	return &Function{Name: name, Args: args, typ: t, mapping: mapping}
}

// Like builds a pattern match. The operand mapping is inferred across
// match, pattern, and escape, and applied to all three.
func (f *Factory) Like(match, pattern, escape Expression) *Like {
	operands := []Expression{match, pattern}
	if escape != nil {
		operands = append(operands, escape)
	}
	m := f.inferMapping(operands...)
	match = f.applyMapping(match, m)
	pattern = f.applyMapping(pattern, m)
	if escape != nil {
		escape = f.applyMapping(escape, m)
	}
	return &Like{Match: match, Pattern: pattern, Escape: escape, mapping: f.mappings.BoolMapping()}
}

// Exists builds an existence test over a subquery.
func (f *Factory) Exists(sub *SelectExpression, negated bool) *Exists {
	return &Exists{Subquery: sub, Negated: negated, mapping: f.mappings.BoolMapping()}
}

// InValues builds membership of item in a literal value list. The item
// mapping is inferred if absent and applied to every list element; the
// result is boolean.
func (f *Factory) InValues(item Expression, values []Expression, negated bool) *In {
	operands := append([]Expression{item}, values...)
	m := f.inferMapping(operands...)
	item = f.applyMapping(item, m)
	applied := make([]Expression, len(values))
	for i, v := range values {
		applied[i] = f.applyMapping(v, m)
	}
	return &In{Item: item, Values: applied, Negated: negated, mapping: f.mappings.BoolMapping()}
}

// InParameter builds membership of item in a deferred runtime list.
// The list parameter shares the item's mapping so expansion produces
// correctly typed constants.
func (f *Factory) InParameter(item Expression, values *Parameter, negated bool) *In {
	m := f.inferMapping(item, values)
	item = f.applyMapping(item, m)
	param, _ := f.applyMapping(values, m).(*Parameter)
	return &In{Item: item, ValuesParameter: param, Negated: negated, mapping: f.mappings.BoolMapping()}
}

// InSubquery builds membership of item in a single-column subquery.
// The subquery's projected column must already carry a concrete
// mapping; an untyped subquery result cannot be compared and is a
// fatal configuration error.
func (f *Factory) InSubquery(item Expression, sub *SelectExpression, negated bool) (*In, error) {
	projections := sub.Projections()
	if len(projections) != 1 {
		return nil, &TranslationError{
			Code:    ErrCodeUntypedSubquery,
			Message: "IN subquery must project exactly one column",
		}
	}
	m := projections[0].Mapping()
	if m == nil {
		return nil, &TranslationError{
			Code:    ErrCodeUntypedSubquery,
			Message: "IN subquery column carries no type mapping",
		}
	}
	item = f.applyMapping(item, m)
	return &In{Item: item, Subquery: sub, Negated: negated, mapping: f.mappings.BoolMapping()}, nil
}

// OrderingAsc and OrderingDesc build orderings over an expression.
func (f *Factory) OrderingAsc(e Expression) *Ordering  { return &Ordering{Expr: e, Ascending: true} }
func (f *Factory) OrderingDesc(e Expression) *Ordering { return &Ordering{Expr: e, Ascending: false} }

// Case builds a case expression. The result type/mapping comes from
// the first typed branch; the inferred mapping is propagated to every
// WHEN result and the ELSE independently, and the operand mapping (for
// the simple form) is inferred across operand and tests.
func (f *Factory) Case(operand Expression, whens []CaseWhen, elseExpr Expression) *Case {
	branches := make([]Expression, 0, len(whens)+1)
	for _, w := range whens {
		branches = append(branches, w.Result)
	}
	if elseExpr != nil {
		branches = append(branches, elseExpr)
	}
	resultMapping := f.inferMapping(branches...)
	var typ reflect.Type
	for _, b := range branches {
		if b.ValueType() != nil {
			typ = b.ValueType()
			break
		}
	}

	var testMapping *metadata.TypeMapping
	if operand != nil {
		tests := make([]Expression, 0, len(whens)+1)
		tests = append(tests, operand)
		for _, w := range whens {
			tests = append(tests, w.Test)
		}
		testMapping = f.inferMapping(tests...)
		operand = f.applyMapping(operand, testMapping)
	}

	applied := make([]CaseWhen, len(whens))
	for i, w := range whens {
		test := w.Test
		if operand != nil {
			test = f.applyMapping(test, testMapping)
		}
		applied[i] = CaseWhen{Test: test, Result: f.applyMapping(w.Result, resultMapping)}
	}
	if elseExpr != nil {
		elseExpr = f.applyMapping(elseExpr, resultMapping)
	}
	return &Case{Operand: operand, Whens: applied, Else: elseExpr, typ: typ, mapping: resultMapping}
}

// SelectEntity seeds a query for an entity type: the root member maps
// to an entity projection over the type's properties, and hierarchies
// get a discriminator predicate (equality for a single concrete type,
// membership for several).
func (f *Factory) SelectEntity(et *metadata.EntityType) (*SelectExpression, error) {
	sel := NewSelect(et.Container)
	ep := NewEntityProjection(et)
	sel.Mapping().Set(RootMember(), ep)

	discProp := et.DiscriminatorProperty()
	if discProp == nil {
		return sel, nil
	}

	concrete := et.ConcreteDerivedTypes()
	if !et.Abstract {
		concrete = append([]*metadata.EntityType{et}, concrete...)
	}
	if len(concrete) == 0 {
		return nil, &TranslationError{
			Code:    ErrCodeUnsupported,
			Message: "entity type has no concrete types to materialize",
			Member:  et.Name,
		}
	}

	discColumn := ep.BindProperty(discProp.Name)
	if discColumn == nil {
		return nil, &TranslationError{
			Code:    ErrCodeMissingProjection,
			Message: "discriminator property not covered by entity projection",
			Member:  discProp.Name,
		}
	}
	if len(concrete) == 1 {
		predicate := f.Equal(discColumn, f.Constant(concrete[0].DiscriminatorValue))
		if err := sel.ApplyPredicate(predicate); err != nil {
			return nil, err
		}
		return sel, nil
	}
	values := make([]Expression, len(concrete))
	for i, c := range concrete {
		values[i] = f.Constant(c.DiscriminatorValue)
	}
	if err := sel.ApplyPredicate(f.InValues(discColumn, values, false)); err != nil {
		return nil, err
	}
	return sel, nil
}

// inferMapping returns the first non-nil mapping among the
// expressions, falling back to the first expression's default mapping
// by Go type.
func (f *Factory) inferMapping(exprs ...Expression) *metadata.TypeMapping {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if m := e.Mapping(); m != nil {
			return m
		}
	}
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if m := f.mappings.FindMapping(e.ValueType()); m != nil {
			return m
		}
	}
	return nil
}

// applyMapping returns e carrying mapping m. An expression that
// already has a mapping keeps it; otherwise a copy with m set is
// produced (nodes are immutable).
func (f *Factory) applyMapping(e Expression, m *metadata.TypeMapping) Expression {
	if e == nil || m == nil || e.Mapping() != nil {
		return e
	}
	switch x := e.(type) {
	case *Column:
		return &Column{Name: x.Name, Nullable: x.Nullable, typ: x.typ, mapping: m}
	case *Constant:
		return &Constant{Value: x.Value, typ: x.typ, mapping: m}
	case *Parameter:
		return &Parameter{Name: x.Name, typ: x.typ, mapping: m}
	case *Binary:
		return &Binary{Op: x.Op, Left: x.Left, Right: x.Right, typ: x.typ, mapping: m}
	case *Unary:
		return &Unary{Op: x.Op, Operand: x.Operand, typ: x.typ, mapping: m}
	case *Function:
		return &Function{Name: x.Name, Args: x.Args, typ: x.typ, mapping: m}
	case *Case:
		return &Case{Operand: x.Operand, Whens: x.Whens, Else: x.Else, typ: x.typ, mapping: m}
	default:
		// Boolean-shaped nodes (Like, In, Exists) and structural nodes
		// already carry their mapping by construction.
		return e
	}
}
