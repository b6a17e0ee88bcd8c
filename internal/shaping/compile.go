// Package shaping compiles a shaped query into an executable form: the
// finalized logical query plus a materializer reconstructing typed
// objects from raw store records.
//
// This is the store-specific compiling pass. It rewrites the shaper
// tree bottom-up (discovering nested owned entities on the fly),
// finalizes and freezes the logical query, and emits a Shaper closure
// the execution adapters invoke per record.
package shaping

import (
	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/querytree"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/store"
)

// Shaper materializes one raw record into a result value.
type Shaper func(rec store.Record) (any, error)

// CompiledQuery is the immutable output of compilation: everything the
// execution adapters need to run the query and shape its results.
type CompiledQuery struct {
	// Select is the finalized, frozen logical query.
	Select *sqlexpr.SelectExpression

	// Container is the store container the query runs against.
	Container string

	// Shaper materializes one record.
	Shaper Shaper

	// Cardinality describes the expected result count.
	Cardinality querytree.ResultCardinality
}

// Compiler performs the shaped-query compiling pass for one model.
type Compiler struct {
	model *metadata.Model
}

// NewCompiler creates a compiler over a model.
func NewCompiler(model *metadata.Model) *Compiler {
	return &Compiler{model: model}
}

// Compile finalizes the logical query and synthesizes the
// materializer. The input shaped query is not reusable afterwards: its
// SelectExpression is frozen.
func (c *Compiler) Compile(sq *querytree.ShapedQuery) (*CompiledQuery, error) {
	shaper, err := c.rebuildShaper(sq.Shaper)
	if err != nil {
		return nil, err
	}

	if err := sq.Select.ApplyProjection(); err != nil {
		return nil, err
	}
	sq.Select.Freeze()

	fn, err := c.compileShaper(shaper)
	if err != nil {
		return nil, err
	}
	return &CompiledQuery{
		Select:      sq.Select,
		Container:   sq.Select.Container(),
		Shaper:      fn,
		Cardinality: sq.Cardinality,
	}, nil
}

// rebuildShaper recomputes entity shaper child lists bottom-up,
// discovering owned navigations. Only true forward-owned references
// nest: non-ownership navigations, dependent-to-principal
// back-references, and collections are skipped (collections are
// rejected later if they appear explicitly).
func (c *Compiler) rebuildShaper(s querytree.Shaper) (querytree.Shaper, error) {
	switch x := s.(type) {
	case *querytree.EntityShaper:
		return c.rebuildEntity(x)
	case *querytree.ProjectionBinding:
		return x, nil
	case *querytree.IncludeShaper:
		entity, err := c.rebuildShaper(x.Entity)
		if err != nil {
			return nil, err
		}
		child, err := c.rebuildShaper(x.Child)
		if err != nil {
			return nil, err
		}
		if entity == x.Entity && child == x.Child {
			return x, nil
		}
		return &querytree.IncludeShaper{Entity: entity, Navigation: x.Navigation, Child: child}, nil
	case *querytree.CollectionShaper:
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeUnsupported,
			Message: "collection projection is not implemented for the document store",
		}
	}
	return s, nil
}

func (c *Compiler) rebuildEntity(es *querytree.EntityShaper) (*querytree.EntityShaper, error) {
	navs := es.EntityType.Navigations()
	seen := make(map[*metadata.Navigation]bool, len(navs))
	for _, n := range navs {
		seen[n] = true
	}
	for _, d := range es.EntityType.ConcreteDerivedTypes() {
		for _, n := range d.Navigations() {
			if !seen[n] {
				seen[n] = true
				navs = append(navs, n)
			}
		}
	}

	var children []*querytree.EntityShaper
	for _, nav := range navs {
		if !nav.Owned || nav.OnDependent || nav.Collection {
			continue
		}
		child := &querytree.EntityShaper{
			Binding:          es.Binding,
			EntityType:       nav.Target,
			Nullable:         true,
			ParentNavigation: nav,
		}
		rebuilt, err := c.rebuildEntity(child)
		if err != nil {
			return nil, err
		}
		children = append(children, rebuilt)
	}
	return es.WithChildren(children), nil
}

// compileShaper lowers a shaper node to its materializer closure.
func (c *Compiler) compileShaper(s querytree.Shaper) (Shaper, error) {
	switch x := s.(type) {
	case *querytree.EntityShaper:
		return c.compileEntity(x, true)
	case *querytree.ProjectionBinding:
		return c.compileBinding(x)
	case *querytree.IncludeShaper:
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeUnsupported,
			Message: "include shaping is not implemented for the document store",
		}
	case *querytree.CollectionShaper:
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeUnsupported,
			Message: "collection projection is not implemented for the document store",
		}
	}
	return nil, &sqlexpr.TranslationError{
		Code:    sqlexpr.ErrCodeUnsupported,
		Message: "unrecognized shaper node",
	}
}

// compileBinding resolves a projection-binding leaf to a field read
// with conversion. The aliased field is read from the record; a
// registered value converter runs behind a null short-circuit, so a
// null raw value materializes the type's default and the converter is
// never invoked on null.
func (c *Compiler) compileBinding(b *querytree.ProjectionBinding) (Shaper, error) {
	projections := b.Select.Projections()
	var slot *sqlexpr.Projection
	if b.HasIndex {
		if b.Index < 0 || b.Index >= len(projections) {
			return nil, &sqlexpr.TranslationError{
				Code:    sqlexpr.ErrCodeMissingProjection,
				Message: "projection index out of range",
			}
		}
		slot = projections[b.Index]
	} else {
		bound, err := b.Select.Mapping().Get(b.Member)
		if err != nil {
			return nil, err
		}
		p, ok := bound.(*sqlexpr.Projection)
		if !ok {
			return nil, &sqlexpr.TranslationError{
				Code:    sqlexpr.ErrCodeMissingProjection,
				Message: "member does not resolve to a materialized slot",
				Member:  b.Member.String(),
			}
		}
		slot = p
	}

	alias := slot.Alias
	mapping := slot.Mapping()
	return func(rec store.Record) (any, error) {
		raw, ok := rec.Field(alias)
		if !ok || raw == nil {
			return nil, nil
		}
		return mapping.Convert(raw)
	}, nil
}
