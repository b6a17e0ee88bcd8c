// Package metadata holds the entity model consumed by the query
// translation pipeline.
//
// The model is a read-only graph once built: entity types with their
// properties and navigations, discriminator configuration for
// polymorphic hierarchies, and the store type mappings used to convert
// between raw store values and Go values.
//
// The translation and shaping layers never mutate the model. They also
// never construct it - models come from a ModelBuilder (tests, embedded
// use) or from the CUE model definition loader in internal/modeldef.
//
// SEALED LIFECYCLE:
//
// ModelBuilder is the only way to produce a Model. Build performs the
// cross-entity fixup passes (base/derived links, navigation target
// resolution, struct field index caching) and returns an immutable
// Model. Holding on to the builder after Build is a usage error.
package metadata
