package sqlexpr

import (
	"reflect"

	"github.com/roach88/entq/internal/metadata"
)

// Expression is the sealed interface over physical query nodes.
//
// Nodes are immutable: rewriting replaces a node wholesale when any
// child changes, never mutates in place. Every node carries a Go value
// type and an optional store type mapping (shared by pointer).
type Expression interface {
	// ValueType is the Go type the expression evaluates to.
	ValueType() reflect.Type

	// Mapping is the store type mapping, or nil if not yet inferred.
	Mapping() *metadata.TypeMapping

	sqlNode() // Marker method - seals interface to this package
}

// BinaryOperator enumerates binary node operators.
type BinaryOperator int

const (
	OpEqual BinaryOperator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpAndAlso
	OpOrElse
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpCoalesce
)

// IsComparison reports whether the operator yields a boolean from two
// comparable operands.
func (op BinaryOperator) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return true
	}
	return false
}

// IsLogical reports whether the operator combines two booleans.
func (op BinaryOperator) IsLogical() bool {
	return op == OpAndAlso || op == OpOrElse
}

// UnaryOperator enumerates unary node operators.
type UnaryOperator int

const (
	OpNot UnaryOperator = iota
	OpNegate
	OpIsNull
	OpIsNotNull
)

// Column reads one named field of the source row/document.
type Column struct {
	// Name is the store field name.
	Name string

	// Nullable marks columns that may hold null.
	Nullable bool

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (c *Column) ValueType() reflect.Type        { return c.typ }
func (c *Column) Mapping() *metadata.TypeMapping { return c.mapping }
func (c *Column) sqlNode()                       {}

// Constant is a literal value. Constants are emitted as parameters by
// the SQL generator, never interpolated into query text.
type Constant struct {
	Value any

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (c *Constant) ValueType() reflect.Type        { return c.typ }
func (c *Constant) Mapping() *metadata.TypeMapping { return c.mapping }
func (c *Constant) sqlNode()                       {}

// IsTrue reports whether the constant is the literal boolean true.
func (c *Constant) IsTrue() bool {
	b, ok := c.Value.(bool)
	return ok && b
}

// IsFalse reports whether the constant is the literal boolean false.
func (c *Constant) IsFalse() bool {
	b, ok := c.Value.(bool)
	return ok && !b
}

// Parameter is a deferred runtime value, resolved at execution time
// from the parameter bag by name.
type Parameter struct {
	Name string

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (p *Parameter) ValueType() reflect.Type        { return p.typ }
func (p *Parameter) Mapping() *metadata.TypeMapping { return p.mapping }
func (p *Parameter) sqlNode()                       {}

// Binary applies a binary operator to two operands.
type Binary struct {
	Op    BinaryOperator
	Left  Expression
	Right Expression

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (b *Binary) ValueType() reflect.Type        { return b.typ }
func (b *Binary) Mapping() *metadata.TypeMapping { return b.mapping }
func (b *Binary) sqlNode()                       {}

// Unary applies a unary operator to one operand.
type Unary struct {
	Op      UnaryOperator
	Operand Expression

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (u *Unary) ValueType() reflect.Type        { return u.typ }
func (u *Unary) Mapping() *metadata.TypeMapping { return u.mapping }
func (u *Unary) sqlNode()                       {}

// Function is a store function invocation.
type Function struct {
	Name string
	Args []Expression

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (f *Function) ValueType() reflect.Type        { return f.typ }
func (f *Function) Mapping() *metadata.TypeMapping { return f.mapping }
func (f *Function) sqlNode()                       {}

// Like is a pattern match with an optional escape character operand.
type Like struct {
	Match   Expression
	Pattern Expression
	Escape  Expression // nil when no escape clause

	mapping *metadata.TypeMapping
}

func (l *Like) ValueType() reflect.Type        { return boolType }
func (l *Like) Mapping() *metadata.TypeMapping { return l.mapping }
func (l *Like) sqlNode()                       {}

// Exists tests a subquery for at least one row.
type Exists struct {
	Subquery *SelectExpression
	Negated  bool

	mapping *metadata.TypeMapping
}

func (e *Exists) ValueType() reflect.Type        { return boolType }
func (e *Exists) Mapping() *metadata.TypeMapping { return e.mapping }
func (e *Exists) sqlNode()                       {}

// In tests membership of Item against exactly one of: a literal value
// list, a deferred runtime parameter holding a list, or a subquery.
type In struct {
	Item Expression

	// Values is the compile-time value list, when known.
	Values []Expression

	// ValuesParameter defers the list to a runtime parameter. The
	// execution layer expands it before SQL generation.
	ValuesParameter *Parameter

	// Subquery is the single-column subquery form.
	Subquery *SelectExpression

	Negated bool

	mapping *metadata.TypeMapping
}

func (i *In) ValueType() reflect.Type        { return boolType }
func (i *In) Mapping() *metadata.TypeMapping { return i.mapping }
func (i *In) sqlNode()                       {}

// CaseWhen is one WHEN test → result branch of a Case.
type CaseWhen struct {
	Test   Expression
	Result Expression
}

// Case is a searched or simple case expression. Operand is nil for the
// searched form.
type Case struct {
	Operand Expression
	Whens   []CaseWhen
	Else    Expression // nil means store default (null)

	typ     reflect.Type
	mapping *metadata.TypeMapping
}

func (c *Case) ValueType() reflect.Type        { return c.typ }
func (c *Case) Mapping() *metadata.TypeMapping { return c.mapping }
func (c *Case) sqlNode()                       {}

// Ordering pairs a sort expression with a direction.
type Ordering struct {
	Expr      Expression
	Ascending bool
}

func (o *Ordering) ValueType() reflect.Type        { return o.Expr.ValueType() }
func (o *Ordering) Mapping() *metadata.TypeMapping { return o.Expr.Mapping() }
func (o *Ordering) sqlNode()                       {}

// Projection is one finalized output slot: an expression plus the
// alias it is emitted under.
type Projection struct {
	Expr  Expression
	Alias string
}

func (p *Projection) ValueType() reflect.Type        { return p.Expr.ValueType() }
func (p *Projection) Mapping() *metadata.TypeMapping { return p.Expr.Mapping() }
func (p *Projection) sqlNode()                       {}

// EntityProjection covers an entity type's declared properties with
// their column expressions. It lives in the projection mapping until
// ApplyProjection materializes its columns into output slots.
type EntityProjection struct {
	EntityType *metadata.EntityType

	columns  map[string]*Column
	order    []string
	navCols  map[string]*Column
	navOrder []string
}

// NewEntityProjection builds an entity projection over the entity's
// properties (declared and inherited, plus all derived-type properties
// for hierarchy roots, since every concrete row shape must be
// readable), and over its owned-navigation document columns so nested
// entities can be shaped from the same row.
func NewEntityProjection(et *metadata.EntityType) *EntityProjection {
	ep := &EntityProjection{
		EntityType: et,
		columns:    make(map[string]*Column),
		navCols:    make(map[string]*Column),
	}
	add := func(p *metadata.Property) {
		if _, ok := ep.columns[p.Name]; ok {
			return
		}
		ep.columns[p.Name] = &Column{
			Name:     p.StoreName,
			Nullable: p.Nullable,
			typ:      p.GoType,
			mapping:  p.Mapping,
		}
		ep.order = append(ep.order, p.Name)
	}
	addNav := func(n *metadata.Navigation) {
		if !n.Owned || n.OnDependent || n.Collection {
			return
		}
		if _, ok := ep.navCols[n.Name]; ok {
			return
		}
		ep.navCols[n.Name] = &Column{
			Name:     n.StoreName,
			Nullable: true,
			typ:      anyType,
		}
		ep.navOrder = append(ep.navOrder, n.Name)
	}
	for _, p := range et.Properties() {
		add(p)
	}
	for _, n := range et.Navigations() {
		addNav(n)
	}
	for _, d := range et.ConcreteDerivedTypes() {
		for _, p := range d.Properties() {
			add(p)
		}
		for _, n := range d.Navigations() {
			addNav(n)
		}
	}
	return ep
}

// BindProperty returns the column bound to the named property, or nil.
func (ep *EntityProjection) BindProperty(name string) *Column {
	return ep.columns[name]
}

// BindNavigation returns the document column bound to the named owned
// navigation, or nil.
func (ep *EntityProjection) BindNavigation(name string) *Column {
	return ep.navCols[name]
}

// PropertyNames returns bound property names in declaration order.
func (ep *EntityProjection) PropertyNames() []string {
	return ep.order
}

// NavigationNames returns bound owned-navigation names in declaration
// order.
func (ep *EntityProjection) NavigationNames() []string {
	return ep.navOrder
}

func (ep *EntityProjection) ValueType() reflect.Type {
	if ep.EntityType.GoType != nil {
		return ep.EntityType.GoType
	}
	return anyType
}
func (ep *EntityProjection) Mapping() *metadata.TypeMapping { return nil }
func (ep *EntityProjection) sqlNode()                       {}

var (
	boolType = reflect.TypeOf(false)
	anyType  = reflect.TypeOf((*any)(nil)).Elem()
)
