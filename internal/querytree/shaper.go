package querytree

import (
	"reflect"

	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/sqlexpr"
)

// Shaper is the sealed interface over materialization nodes. The
// shaper tree describes how one raw result record reconstructs a typed
// object; it is owned by the compiled query and immutable once the
// shaping compiler finishes.
type Shaper interface {
	shaperNode() // Marker method - seals interface to this package
}

// ProjectionBinding is the leaf shaper: a reference into the logical
// query's projection structure, either by member (pre-finalize) or by
// slot index (post-finalize).
type ProjectionBinding struct {
	// Select is the logical query the binding indexes into.
	Select *sqlexpr.SelectExpression

	// Member identifies the projection entry when HasIndex is false.
	Member sqlexpr.ProjectionMember

	// Index is the finalized slot position when HasIndex is true.
	Index    int
	HasIndex bool

	// Type is the bound value's Go type, or nil when dynamic.
	Type reflect.Type
}

func (*ProjectionBinding) shaperNode() {}

// BindMember creates a member-keyed projection binding.
func BindMember(sel *sqlexpr.SelectExpression, member sqlexpr.ProjectionMember, t reflect.Type) *ProjectionBinding {
	return &ProjectionBinding{Select: sel, Member: member, Type: t}
}

// BindIndex creates an index-keyed projection binding.
func BindIndex(sel *sqlexpr.SelectExpression, index int, t reflect.Type) *ProjectionBinding {
	return &ProjectionBinding{Select: sel, Index: index, HasIndex: true, Type: t}
}

// EntityShaper materializes one entity from the record region its
// binding resolves to.
type EntityShaper struct {
	// Binding locates the entity's fields in the projection.
	Binding *ProjectionBinding

	// EntityType is the declared (possibly abstract) type to
	// materialize; the discriminator picks the concrete type.
	EntityType *metadata.EntityType

	// Nullable marks shapers whose source region may be null (owned
	// entities, optional references). A null region materializes nil
	// without invoking the materializer.
	Nullable bool

	// ParentNavigation is non-nil for nested/owned entities: the
	// navigation on the owner whose store name locates the nested
	// document.
	ParentNavigation *metadata.Navigation

	// Children are the owned entity shapers nested under this one.
	// Recomputed bottom-up by the shaping compiler as nested
	// ownerships are discovered.
	Children []*EntityShaper
}

func (*EntityShaper) shaperNode() {}

// WithChildren returns a copy carrying the given child shapers. The
// receiver is unchanged; shaper trees rewrite structurally.
func (e *EntityShaper) WithChildren(children []*EntityShaper) *EntityShaper {
	out := *e
	out.Children = children
	return &out
}

// CollectionShaper materializes a collection navigation: the inner
// shaper applied per element.
type CollectionShaper struct {
	Binding     *ProjectionBinding
	Inner       Shaper
	Navigation  *metadata.Navigation
	ElementType reflect.Type
}

func (*CollectionShaper) shaperNode() {}

// IncludeShaper attaches an eagerly-loaded navigation's shaper to its
// owner entity.
type IncludeShaper struct {
	Entity     Shaper
	Navigation *metadata.Navigation
	Child      Shaper
}

func (*IncludeShaper) shaperNode() {}

// ResultCardinality describes how many results the query yields.
type ResultCardinality int

const (
	// CardinalityEnumerable is an arbitrary-length sequence.
	CardinalityEnumerable ResultCardinality = iota

	// CardinalitySingle is exactly one result.
	CardinalitySingle

	// CardinalitySingleOrDefault is zero or one result.
	CardinalitySingleOrDefault
)

// ShapedQuery pairs a logical query with the shaper describing its
// materialization. This is the root the compiling visitor consumes.
type ShapedQuery struct {
	Select      *sqlexpr.SelectExpression
	Shaper      Shaper
	Cardinality ResultCardinality
}
