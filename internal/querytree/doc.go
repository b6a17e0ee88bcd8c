// Package querytree holds the store-agnostic shaped-query IR: the root
// pairing of a logical query with a shaper describing how results
// materialize, plus the source-level navigation tree the binder
// flattens before physical translation.
//
// Two sealed node sets live here:
//
//   - SourceExpression: the pre-physical tree (parameters, member
//     accesses, navigation accesses, type coercions, lazily-expanded
//     root markers). The navigation binder rewrites this set.
//
//   - Shaper: the materialization tree (entity shapers, collection
//     shapers, includes, projection-binding leaves). The shaping
//     compiler consumes this set after translation finalizes the
//     physical query.
package querytree
