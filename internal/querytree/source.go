package querytree

import (
	"reflect"

	"github.com/roach88/entq/internal/metadata"
)

// SourceExpression is the sealed interface over pre-physical query
// nodes: the shape member accesses and navigation traversals take
// before translation lowers them onto the projection structure.
type SourceExpression interface {
	// SourceType is the static Go type of the node's value, or nil
	// for dynamic entities.
	SourceType() reflect.Type

	srcNode() // Marker method - seals interface to this package
}

// Parameter is a query root: the lambda parameter member accesses hang
// off.
type Parameter struct {
	Name string
	Type reflect.Type
}

func (p *Parameter) SourceType() reflect.Type { return p.Type }
func (p *Parameter) srcNode()                 {}

// MemberAccess reads one member of its source. Chain, when present, is
// the complete navigation chain the access represents; it is attached
// only when every traversed segment is a navigation, which downstream
// eager-load handling relies on.
type MemberAccess struct {
	Source SourceExpression
	Member string
	Chain  []*metadata.Navigation
	Type   reflect.Type
}

func (m *MemberAccess) SourceType() reflect.Type { return m.Type }
func (m *MemberAccess) srcNode()                 {}

// TypeAs coerces its operand to a different static type. Inserted by
// the binder when a flattened access's type differs from the declared
// type of the node it replaced.
type TypeAs struct {
	Operand SourceExpression
	Type    reflect.Type
}

func (t *TypeAs) SourceType() reflect.Type { return t.Type }
func (t *TypeAs) srcNode()                 {}

// PathNode is one segment of a navigation path. Segments link to their
// parent; the root of the chain has a nil parent. Navigation is nil
// for scalar-member segments.
type PathNode struct {
	Parent     *PathNode
	Member     string
	Navigation *metadata.Navigation

	// Type is the static Go type of the value at this segment, or nil
	// for dynamic entities.
	Type reflect.Type
}

// NavigationAccess is an unresolved member access produced during
// query-shape construction: it references its originating root and the
// deepest path node of the traversal. The binder flattens it into a
// MemberAccess chain rooted at the target parameter.
type NavigationAccess struct {
	Root         *Parameter
	Node         *PathNode
	DeclaredType reflect.Type
}

func (n *NavigationAccess) SourceType() reflect.Type { return n.DeclaredType }
func (n *NavigationAccess) srcNode()                 {}

// RootMarker is a logical placeholder for a lazily-expanded subquery
// inside a projection. Expand reduces it to its constituent
// query-plus-shaper form; the binder expands markers it encounters and
// revisits the whole expansion.
type RootMarker struct {
	Type   reflect.Type
	Expand func() SourceExpression
}

func (r *RootMarker) SourceType() reflect.Type { return r.Type }
func (r *RootMarker) srcNode()                 {}

// Call represents a method invocation in the source tree, kept for
// translator dispatch (instance may be nil for static methods).
type Call struct {
	Instance SourceExpression
	Method   string
	Args     []SourceExpression
	Type     reflect.Type
}

func (c *Call) SourceType() reflect.Type { return c.Type }
func (c *Call) srcNode()                 {}

// Value is a literal in the source tree.
type Value struct {
	V    any
	Type reflect.Type
}

func (v *Value) SourceType() reflect.Type { return v.Type }
func (v *Value) srcNode()                 {}
