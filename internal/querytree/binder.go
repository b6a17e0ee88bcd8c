package querytree

import "github.com/roach88/entq/internal/metadata"

// BindNavigations flattens every NavigationAccess under e into member
// access chains rooted at target, expanding root markers along the
// way.
//
// The rewrite is pure and total: unrecognized node kinds fall through
// to structural default rewriting, and nothing here can fail - an
// access that cannot be resolved simply keeps its structure for a
// later pass to handle.
func BindNavigations(e SourceExpression, target *Parameter) SourceExpression {
	b := &navigationBinder{target: target}
	return b.visit(e)
}

type navigationBinder struct {
	target *Parameter
}

func (b *navigationBinder) visit(e SourceExpression) SourceExpression {
	switch x := e.(type) {
	case *NavigationAccess:
		return b.bind(x)

	case *RootMarker:
		// Reduce to the constituent query+shaper form and revisit the
		// whole expansion: markers may nest.
		return b.visit(x.Expand())

	case *MemberAccess:
		source := b.visit(x.Source)
		if source == x.Source {
			return x
		}
		return &MemberAccess{Source: source, Member: x.Member, Chain: x.Chain, Type: x.Type}

	case *TypeAs:
		operand := b.visit(x.Operand)
		if operand == x.Operand {
			return x
		}
		return &TypeAs{Operand: operand, Type: x.Type}

	case *Call:
		changed := false
		var instance SourceExpression
		if x.Instance != nil {
			instance = b.visit(x.Instance)
			changed = instance != x.Instance
		}
		args := x.Args
		var newArgs []SourceExpression
		for i, a := range x.Args {
			na := b.visit(a)
			if newArgs == nil && na != a {
				newArgs = append([]SourceExpression(nil), x.Args[:i]...)
			}
			if newArgs != nil {
				newArgs = append(newArgs, na)
			}
		}
		if newArgs != nil {
			args = newArgs
			changed = true
		}
		if !changed {
			return x
		}
		return &Call{Instance: instance, Method: x.Method, Args: args, Type: x.Type}

	default:
		// Leaves (Parameter, Value) and anything future rewrite to
		// themselves.
		return e
	}
}

// bind walks the path node's parent chain collecting navigation edges,
// then composes the flattened member access rooted at the target
// parameter.
//
// The navigation chain is attached to the resulting access only when
// the collected navigation count equals the full path length: a path
// containing non-navigation members (scalar properties) is not a
// complete navigation description, so no chain is attached.
func (b *navigationBinder) bind(access *NavigationAccess) SourceExpression {
	var segments []*PathNode
	for node := access.Node; node != nil; node = node.Parent {
		segments = append(segments, node)
	}
	// Parent chain yields leaf-first; reverse to root-first.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	var navigations []*metadata.Navigation
	for _, seg := range segments {
		if seg.Navigation != nil {
			navigations = append(navigations, seg.Navigation)
		}
	}

	var result SourceExpression = b.target
	for i, seg := range segments {
		var chain []*metadata.Navigation
		if i == len(segments)-1 && len(navigations) == len(segments) {
			chain = navigations
		}
		result = &MemberAccess{Source: result, Member: seg.Member, Chain: chain, Type: seg.Type}
	}

	if access.DeclaredType != nil && result.SourceType() != access.DeclaredType {
		result = &TypeAs{Operand: result, Type: access.DeclaredType}
	}
	return result
}
