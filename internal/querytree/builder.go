package querytree

import (
	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/sqlexpr"
)

// Builder applies query operators to a shaped query during
// translation. Each operator mutates the underlying SelectExpression
// in place; the builder is discarded once translation finishes and the
// query is frozen.
type Builder struct {
	factory *sqlexpr.Factory
	shaped  *ShapedQuery
}

// FromEntity seeds a shaped query over an entity type: the logical
// query gets the entity's root projection (and discriminator predicate
// for hierarchies), and the shaper is a non-nullable top-level entity
// shaper bound at the root member.
func FromEntity(factory *sqlexpr.Factory, et *metadata.EntityType) (*Builder, error) {
	sel, err := factory.SelectEntity(et)
	if err != nil {
		return nil, err
	}
	shaper := &EntityShaper{
		Binding:    BindMember(sel, sqlexpr.RootMember(), et.GoType),
		EntityType: et,
	}
	return &Builder{
		factory: factory,
		shaped: &ShapedQuery{
			Select: sel,
			Shaper: shaper,
		},
	}, nil
}

// Factory returns the expression factory the builder constructs with.
func (b *Builder) Factory() *sqlexpr.Factory { return b.factory }

// Select returns the logical query under construction.
func (b *Builder) Select() *sqlexpr.SelectExpression { return b.shaped.Select }

// Where conjoins a predicate.
func (b *Builder) Where(predicate sqlexpr.Expression) error {
	return b.shaped.Select.ApplyPredicate(predicate)
}

// OrderBy replaces the orderings with an ascending ordering.
func (b *Builder) OrderBy(e sqlexpr.Expression) error {
	return b.shaped.Select.ApplyOrdering(b.factory.OrderingAsc(e))
}

// OrderByDescending replaces the orderings with a descending ordering.
func (b *Builder) OrderByDescending(e sqlexpr.Expression) error {
	return b.shaped.Select.ApplyOrdering(b.factory.OrderingDesc(e))
}

// ThenBy appends an ascending ordering.
func (b *Builder) ThenBy(e sqlexpr.Expression) error {
	return b.shaped.Select.AppendOrdering(b.factory.OrderingAsc(e))
}

// ThenByDescending appends a descending ordering.
func (b *Builder) ThenByDescending(e sqlexpr.Expression) error {
	return b.shaped.Select.AppendOrdering(b.factory.OrderingDesc(e))
}

// Reverse flips every ordering.
func (b *Builder) Reverse() error {
	return b.shaped.Select.ReverseOrderings()
}

// Take applies a row limit.
func (b *Builder) Take(n int) error {
	return b.shaped.Select.ApplyLimit(b.factory.Constant(int64(n)))
}

// Skip applies a row offset.
func (b *Builder) Skip(n int) error {
	return b.shaped.Select.ApplyOffset(b.factory.Constant(int64(n)))
}

// Distinct marks the query distinct.
func (b *Builder) Distinct() error {
	return b.shaped.Select.ApplyDistinct()
}

// Single sets the cardinality to exactly-one.
func (b *Builder) Single() { b.shaped.Cardinality = CardinalitySingle }

// SingleOrDefault sets the cardinality to zero-or-one.
func (b *Builder) SingleOrDefault() { b.shaped.Cardinality = CardinalitySingleOrDefault }

// Shaped returns the shaped query for compilation.
func (b *Builder) Shaped() *ShapedQuery { return b.shaped }

// Property resolves a scalar property of the root entity to its column
// expression via the projection mapping. Only valid while the shaper
// root is an entity shaper.
func (b *Builder) Property(name string) (sqlexpr.Expression, error) {
	es, ok := b.shaped.Shaper.(*EntityShaper)
	if !ok {
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeUnsupported,
			Message: "property access requires an entity-shaped query",
			Member:  name,
		}
	}
	bound, err := b.shaped.Select.Mapping().Get(es.Binding.Member)
	if err != nil {
		return nil, err
	}
	ep, ok := bound.(*sqlexpr.EntityProjection)
	if !ok {
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeMissingProjection,
			Message: "root member is not an entity projection",
			Member:  name,
		}
	}
	col := ep.BindProperty(name)
	if col == nil {
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeMissingProjection,
			Message: "entity type has no such property",
			Member:  name,
		}
	}
	return col, nil
}
