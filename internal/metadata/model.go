package metadata

import (
	"fmt"
	"reflect"
)

// Model is the immutable entity model consumed by the translation
// pipeline. Built once by a ModelBuilder, then shared read-only.
type Model struct {
	entities map[string]*EntityType
	ordered  []*EntityType
	mappings *TypeMappingSource
}

// Entity returns the entity type with the given name, or nil.
func (m *Model) Entity(name string) *EntityType {
	return m.entities[name]
}

// Entities returns all entity types in registration order.
func (m *Model) Entities() []*EntityType {
	return m.ordered
}

// Mappings returns the model's type mapping source.
func (m *Model) Mappings() *TypeMappingSource {
	return m.mappings
}

// EntityType describes one entity in the model.
//
// An entity type with a nil GoType is dynamic: it materializes into a
// value buffer (ordered field map) instead of a Go struct. Both kinds
// flow through the same translation path; only the materializer
// differs.
type EntityType struct {
	// Name uniquely identifies the entity type in the model.
	Name string

	// GoType is the Go struct type this entity materializes into,
	// or nil for dynamic entities.
	GoType reflect.Type

	// Container is the store container (table) holding this entity.
	// Derived types share the root type's container.
	Container string

	// Abstract marks types that never materialize directly; only
	// their concrete derived types do.
	Abstract bool

	// DiscriminatorValue identifies this concrete type in a
	// polymorphic hierarchy. Nil outside hierarchies.
	DiscriminatorValue any

	base        *EntityType
	derived     []*EntityType
	discProp    *Property
	properties  []*Property
	navigations []*Navigation
}

// BaseType returns the direct base type, or nil for root types.
func (e *EntityType) BaseType() *EntityType { return e.base }

// RootType returns the hierarchy root (self for non-derived types).
func (e *EntityType) RootType() *EntityType {
	t := e
	for t.base != nil {
		t = t.base
	}
	return t
}

// DiscriminatorProperty returns the property storing the discriminator
// value, walking up to the root. Nil outside hierarchies.
func (e *EntityType) DiscriminatorProperty() *Property {
	return e.RootType().discProp
}

// Properties returns declared plus inherited properties, base-first.
func (e *EntityType) Properties() []*Property {
	if e.base == nil {
		return e.properties
	}
	inherited := e.base.Properties()
	out := make([]*Property, 0, len(inherited)+len(e.properties))
	out = append(out, inherited...)
	out = append(out, e.properties...)
	return out
}

// Property returns the declared or inherited property by name, or nil.
func (e *EntityType) Property(name string) *Property {
	for _, p := range e.properties {
		if p.Name == name {
			return p
		}
	}
	if e.base != nil {
		return e.base.Property(name)
	}
	return nil
}

// Navigations returns declared plus inherited navigations, base-first.
func (e *EntityType) Navigations() []*Navigation {
	if e.base == nil {
		return e.navigations
	}
	inherited := e.base.Navigations()
	out := make([]*Navigation, 0, len(inherited)+len(e.navigations))
	out = append(out, inherited...)
	out = append(out, e.navigations...)
	return out
}

// Navigation returns the declared or inherited navigation by name.
func (e *EntityType) Navigation(name string) *Navigation {
	for _, n := range e.navigations {
		if n.Name == name {
			return n
		}
	}
	if e.base != nil {
		return e.base.Navigation(name)
	}
	return nil
}

// DerivedTypes returns the directly derived types.
func (e *EntityType) DerivedTypes() []*EntityType { return e.derived }

// ConcreteDerivedTypes returns every non-abstract type strictly below
// this one in the hierarchy, in declaration order.
func (e *EntityType) ConcreteDerivedTypes() []*EntityType {
	var out []*EntityType
	for _, d := range e.derived {
		if !d.Abstract {
			out = append(out, d)
		}
		out = append(out, d.ConcreteDerivedTypes()...)
	}
	return out
}

// ConcreteTypeFor resolves a discriminator value read from the store to
// the concrete entity type it identifies. Includes this type itself.
func (e *EntityType) ConcreteTypeFor(discriminator any) (*EntityType, error) {
	if !e.Abstract && equalDiscriminator(e.DiscriminatorValue, discriminator) {
		return e, nil
	}
	for _, d := range e.ConcreteDerivedTypes() {
		if equalDiscriminator(d.DiscriminatorValue, discriminator) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no concrete type of %s matches discriminator %v", e.Name, discriminator)
}

// equalDiscriminator compares discriminator values loosely: SQLite and
// JSON round-trips widen integers, so int64(1) matches float64(1).
func equalDiscriminator(declared, read any) bool {
	if declared == read {
		return true
	}
	di, dok := asInt64(declared)
	ri, rok := asInt64(read)
	return dok && rok && di == ri
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// Property describes one scalar property of an entity type.
type Property struct {
	// Name is the Go-side member name.
	Name string

	// StoreName is the field name in the store document.
	StoreName string

	// GoType is the property's Go value type.
	GoType reflect.Type

	// Nullable marks properties that may hold a null store value.
	Nullable bool

	// Mapping is the store type mapping, shared by pointer.
	Mapping *TypeMapping

	// fieldIndex is the cached reflect field index into the owning
	// struct type, or nil for dynamic entities.
	fieldIndex []int
}

// FieldIndex returns the cached struct field index, or nil for dynamic
// entity properties.
func (p *Property) FieldIndex() []int { return p.fieldIndex }

// Navigation describes an entity-to-entity reference.
type Navigation struct {
	// Name is the Go-side member name.
	Name string

	// StoreName is the field under which the target is embedded when
	// the navigation is owned.
	StoreName string

	// Declaring is the entity type declaring this navigation.
	Declaring *EntityType

	// Target is the entity type the navigation points at.
	Target *EntityType

	// Owned marks navigations whose target is embedded in the owner's
	// document rather than independently addressable.
	Owned bool

	// OnDependent marks the dependent-to-principal back-reference of
	// an ownership. Shaping never follows these.
	OnDependent bool

	// Collection marks to-many navigations.
	Collection bool

	// fieldIndex is the cached reflect field index into the declaring
	// struct type, or nil for dynamic entities.
	fieldIndex []int
}

// FieldIndex returns the cached struct field index, or nil for dynamic
// entity navigations.
func (n *Navigation) FieldIndex() []int { return n.fieldIndex }
