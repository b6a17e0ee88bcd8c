// Package sqlexpr holds the physical query expression tree: the typed
// store-side representation a query is lowered into before SQL text
// generation.
//
// ARCHITECTURE:
//
// The package sits between the store-agnostic shaped-query IR and the
// SQL generator:
//
//	[query tree + shaper] → [sqlexpr: SelectExpression] → [sqlgen: SQL text]
//
// Two layers live here:
//
//   - Expression: an immutable sealed node set (column, constant,
//     parameter, binary, unary, function, case, in, like, exists,
//     ordering, projection). Rewriting allocates new nodes only where a
//     child changed; an unchanged subtree keeps its identity so callers
//     can cheaply detect "did anything change under me" by pointer
//     comparison.
//
//   - SelectExpression: the one mutable node. It is a builder during
//     translation (predicates conjoined, orderings applied, paging set)
//     and is frozen before being handed to the SQL generator. Mutating
//     a frozen query is a usage error.
//
// SEALED INTERFACES:
//
// Expression is sealed with a marker method. Only types in this package
// implement it, which keeps backend type switches exhaustive:
//
//	switch e := expr.(type) {
//	case *Column:
//	case *Binary:
//	...
//	}
//
// TYPE MAPPINGS:
//
// Every node carries a Go value type and an optional store type
// mapping. The Factory is the single authority for constructing nodes
// with correct mapping propagation; call sites never reimplement the
// inference rules.
package sqlexpr
