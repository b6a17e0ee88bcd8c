package sqlexpr

import (
	"fmt"

	"golang.org/x/text/cases"
)

// defaultAlias is used when a projected expression has no member name
// to derive an alias from.
const defaultAlias = "value"

// caseFolder collapses case differences for alias collision detection.
// Aliases must be unique case-insensitively because the store treats
// result field names that way.
var caseFolder = cases.Fold()

// SelectExpression is the logical query over one container: pending
// projection mapping or finalized projection list, predicate,
// orderings, paging, distinct flag.
//
// LIFECYCLE:
//
// A SelectExpression is a mutable builder while LINQ-operator handlers
// run, then Freeze marks it read-only before SQL generation. Mutating
// a frozen instance is a FROZEN usage error. The ordering rules encode
// SQL's paging semantics: once distinct/limit/offset are applied the
// result order is fixed, so replacing or reversing orderings afterwards
// would silently change which rows a page selects.
type SelectExpression struct {
	container string

	projections []*Projection
	mapping     *ProjectionMapping

	predicate Expression
	orderings []*Ordering
	limit     Expression
	offset    Expression
	distinct  bool

	frozen bool
}

// NewSelect creates an empty query over a container with an empty
// projection mapping.
func NewSelect(container string) *SelectExpression {
	return &SelectExpression{
		container: container,
		mapping:   NewProjectionMapping(),
	}
}

// Container returns the source container (table) name.
func (s *SelectExpression) Container() string { return s.container }

// Predicate returns the current predicate, or nil.
func (s *SelectExpression) Predicate() Expression { return s.predicate }

// Orderings returns the current orderings in application order.
func (s *SelectExpression) Orderings() []*Ordering { return s.orderings }

// Limit returns the limit expression, or nil.
func (s *SelectExpression) Limit() Expression { return s.limit }

// Offset returns the offset expression, or nil.
func (s *SelectExpression) Offset() Expression { return s.offset }

// IsDistinct reports whether DISTINCT is applied.
func (s *SelectExpression) IsDistinct() bool { return s.distinct }

// Projections returns the finalized projection list. Empty until
// ApplyProjection runs.
func (s *SelectExpression) Projections() []*Projection { return s.projections }

// Mapping returns the pending projection mapping.
func (s *SelectExpression) Mapping() *ProjectionMapping { return s.mapping }

// SetMapping replaces the pending projection mapping wholesale. Used by
// translation when the result shape changes (e.g. a projection rewrite).
func (s *SelectExpression) SetMapping(pm *ProjectionMapping) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.mapping = pm
	return nil
}

// Freeze marks the query read-only. Idempotent.
func (s *SelectExpression) Freeze() { s.frozen = true }

// IsFrozen reports whether Freeze has been called.
func (s *SelectExpression) IsFrozen() bool { return s.frozen }

func (s *SelectExpression) mutable() error {
	if s.frozen {
		return usageError(ErrCodeFrozen, "query is frozen; translation-phase mutation after finalize")
	}
	return nil
}

// ApplyProjection materializes the projection mapping into the
// finalized projection list, assigning case-insensitively unique
// aliases. Idempotent: a query whose projections are already
// materialized is left untouched.
//
// Every mapping entry is replaced with a binding to its materialized
// slot, so later member lookups resolve to a slot index.
func (s *SelectExpression) ApplyProjection() error {
	if err := s.mutable(); err != nil {
		return err
	}
	if len(s.projections) > 0 {
		return nil
	}
	for _, member := range s.mapping.Members() {
		expr, err := s.mapping.Get(member)
		if err != nil {
			return err
		}
		switch bound := expr.(type) {
		case *EntityProjection:
			// Each property column becomes its own slot; the entity
			// projection itself stays in the mapping for the shaper.
			for _, name := range bound.PropertyNames() {
				col := bound.BindProperty(name)
				if _, err := s.AddToProjection(col, name); err != nil {
					return err
				}
			}
			for _, name := range bound.NavigationNames() {
				col := bound.BindNavigation(name)
				if _, err := s.AddToProjection(col, name); err != nil {
					return err
				}
			}
		default:
			alias := member.Last()
			idx, err := s.AddToProjection(expr, alias)
			if err != nil {
				return err
			}
			s.mapping.Set(member, &Projection{Expr: expr, Alias: s.projections[idx].Alias})
		}
	}
	return nil
}

// AddToProjection appends an expression to the projection list and
// returns its slot index. A structurally equal expression is not added
// twice: the existing slot index is returned instead. Alias collisions
// are resolved case-insensitively with a numeric suffix.
func (s *SelectExpression) AddToProjection(expr Expression, alias string) (int, error) {
	if err := s.mutable(); err != nil {
		return 0, err
	}
	for i, p := range s.projections {
		if StructurallyEqual(p.Expr, expr) {
			return i, nil
		}
	}
	if alias == "" {
		if col, ok := expr.(*Column); ok {
			alias = col.Name
		} else {
			alias = defaultAlias
		}
	}
	alias = s.uniqueAlias(alias)
	s.projections = append(s.projections, &Projection{Expr: expr, Alias: alias})
	return len(s.projections) - 1, nil
}

func (s *SelectExpression) uniqueAlias(base string) string {
	taken := func(a string) bool {
		folded := caseFolder.String(a)
		for _, p := range s.projections {
			if caseFolder.String(p.Alias) == folded {
				return true
			}
		}
		return false
	}
	if !taken(base) {
		return base
	}
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// ProjectionIndexOf returns the finalized slot index holding a
// structurally equal expression, without mutating the query. Used by
// the shaping compiler after Freeze.
func (s *SelectExpression) ProjectionIndexOf(expr Expression) (int, bool) {
	for i, p := range s.projections {
		if StructurallyEqual(p.Expr, expr) {
			return i, true
		}
	}
	return 0, false
}

// ApplyPredicate conjoins a predicate with the existing one via AND.
// A literal TRUE constant is dropped rather than attached.
func (s *SelectExpression) ApplyPredicate(expr Expression) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if c, ok := expr.(*Constant); ok && c.IsTrue() {
		return nil
	}
	if s.predicate == nil {
		s.predicate = expr
		return nil
	}
	s.predicate = &Binary{
		Op:      OpAndAlso,
		Left:    s.predicate,
		Right:   expr,
		typ:     boolType,
		mapping: s.predicate.Mapping(),
	}
	return nil
}

// ApplyLimit sets the row limit. Setting a limit twice is a usage
// error: it signals a translation-order bug upstream.
func (s *SelectExpression) ApplyLimit(limit Expression) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.limit != nil {
		return usageError(ErrCodeLimitAlreadySet, "limit already applied")
	}
	s.limit = limit
	return nil
}

// ApplyOffset sets the row offset. Setting it twice, or after a limit
// is in place, is a usage error.
func (s *SelectExpression) ApplyOffset(offset Expression) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.offset != nil {
		return usageError(ErrCodeOffsetAlreadySet, "offset already applied")
	}
	if s.limit != nil {
		return usageError(ErrCodeOffsetAfterLimit, "offset cannot be applied after limit")
	}
	s.offset = offset
	return nil
}

// ApplyDistinct marks the query DISTINCT.
func (s *SelectExpression) ApplyDistinct() error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.distinct = true
	return nil
}

// ApplyOrdering replaces all orderings with the given one. Illegal
// once distinct, limit, or offset are applied: paging requires the
// already-fixed order.
func (s *SelectExpression) ApplyOrdering(o *Ordering) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.distinct || s.limit != nil || s.offset != nil {
		return usageError(ErrCodeOrderingAfterPaging,
			"ordering cannot be changed after distinct or paging is applied")
	}
	s.orderings = []*Ordering{o}
	return nil
}

// AppendOrdering adds an ordering unless one over a structurally equal
// expression already exists.
func (s *SelectExpression) AppendOrdering(o *Ordering) error {
	if err := s.mutable(); err != nil {
		return err
	}
	for _, existing := range s.orderings {
		if StructurallyEqual(existing.Expr, o.Expr) {
			return nil
		}
	}
	s.orderings = append(s.orderings, o)
	return nil
}

// ReverseOrderings flips the direction of every ordering in place,
// preserving their order. Illegal once limit or offset are applied,
// because the page boundary was computed under the current order.
func (s *SelectExpression) ReverseOrderings() error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.limit != nil || s.offset != nil {
		return usageError(ErrCodeReverseAfterPaging,
			"orderings cannot be reversed after limit or offset is applied")
	}
	reversed := make([]*Ordering, len(s.orderings))
	for i, o := range s.orderings {
		reversed[i] = &Ordering{Expr: o.Expr, Ascending: !o.Ascending}
	}
	s.orderings = reversed
	return nil
}

// VisitChildren rewrites the predicate, orderings, offset, limit, and
// whichever projection representation is active. A new instance is
// returned only when some child actually changed; otherwise the
// receiver is returned unchanged.
func (s *SelectExpression) VisitChildren(fn RewriteFunc) (*SelectExpression, error) {
	changed := false

	predicate := s.predicate
	if predicate != nil {
		np, err := Rewrite(predicate, fn)
		if err != nil {
			return nil, err
		}
		changed = changed || np != predicate
		predicate = np
	}

	orderings := s.orderings
	var newOrderings []*Ordering
	for i, o := range s.orderings {
		ne, err := Rewrite(o.Expr, fn)
		if err != nil {
			return nil, err
		}
		if newOrderings == nil && ne != o.Expr {
			newOrderings = append([]*Ordering(nil), s.orderings[:i]...)
		}
		if newOrderings != nil {
			if ne == o.Expr {
				newOrderings = append(newOrderings, o)
			} else {
				newOrderings = append(newOrderings, &Ordering{Expr: ne, Ascending: o.Ascending})
			}
		}
	}
	if newOrderings != nil {
		orderings = newOrderings
		changed = true
	}

	offset := s.offset
	if offset != nil {
		no, err := Rewrite(offset, fn)
		if err != nil {
			return nil, err
		}
		changed = changed || no != offset
		offset = no
	}
	limit := s.limit
	if limit != nil {
		nl, err := Rewrite(limit, fn)
		if err != nil {
			return nil, err
		}
		changed = changed || nl != limit
		limit = nl
	}

	projections := s.projections
	mapping := s.mapping
	if len(s.projections) > 0 {
		var newProjections []*Projection
		for i, p := range s.projections {
			ne, err := Rewrite(p.Expr, fn)
			if err != nil {
				return nil, err
			}
			if newProjections == nil && ne != p.Expr {
				newProjections = append([]*Projection(nil), s.projections[:i]...)
			}
			if newProjections != nil {
				if ne == p.Expr {
					newProjections = append(newProjections, p)
				} else {
					newProjections = append(newProjections, &Projection{Expr: ne, Alias: p.Alias})
				}
			}
		}
		if newProjections != nil {
			projections = newProjections
			changed = true
		}
	} else {
		var newMapping *ProjectionMapping
		for _, member := range s.mapping.Members() {
			expr, err := s.mapping.Get(member)
			if err != nil {
				return nil, err
			}
			ne, err := Rewrite(expr, fn)
			if err != nil {
				return nil, err
			}
			if ne != expr && newMapping == nil {
				newMapping = s.mapping.clone()
			}
			if newMapping != nil {
				newMapping.Set(member, ne)
			}
		}
		if newMapping != nil {
			mapping = newMapping
			changed = true
		}
	}

	if !changed {
		return s, nil
	}
	return &SelectExpression{
		container:   s.container,
		projections: projections,
		mapping:     mapping,
		predicate:   predicate,
		orderings:   orderings,
		limit:       limit,
		offset:      offset,
		distinct:    s.distinct,
		frozen:      s.frozen,
	}, nil
}
