package metadata

import (
	"fmt"
	"reflect"
)

// ModelBuilder assembles a Model. It is the mutable phase of the model
// lifecycle; Build resolves cross-entity references and returns the
// immutable Model.
type ModelBuilder struct {
	mappings *TypeMappingSource
	entities []*entityBuilder
}

type entityBuilder struct {
	et       *EntityType
	baseName string
	navs     []*navBuilder
}

type navBuilder struct {
	nav        *Navigation
	targetName string
}

// NewModelBuilder creates a builder with the builtin type mappings.
func NewModelBuilder() *ModelBuilder {
	return &ModelBuilder{mappings: NewTypeMappingSource()}
}

// Mappings exposes the mapping source so callers can register custom
// mappings before adding entities.
func (b *ModelBuilder) Mappings() *TypeMappingSource { return b.mappings }

// EntityBuilder configures one entity type.
type EntityBuilder struct {
	parent *ModelBuilder
	eb     *entityBuilder
}

// Entity starts a new entity type. goType may be nil for a dynamic
// entity. The container defaults to the entity name; derived types
// inherit the root's container at Build time.
func (b *ModelBuilder) Entity(name string, goType reflect.Type) *EntityBuilder {
	eb := &entityBuilder{et: &EntityType{
		Name:      name,
		GoType:    goType,
		Container: name,
	}}
	b.entities = append(b.entities, eb)
	return &EntityBuilder{parent: b, eb: eb}
}

// Container overrides the store container name.
func (e *EntityBuilder) Container(name string) *EntityBuilder {
	e.eb.et.Container = name
	return e
}

// BaseType links this entity under a base type by name.
func (e *EntityBuilder) BaseType(name string) *EntityBuilder {
	e.eb.baseName = name
	return e
}

// Abstract marks the entity as abstract.
func (e *EntityBuilder) Abstract() *EntityBuilder {
	e.eb.et.Abstract = true
	return e
}

// Discriminator declares the discriminator property on a hierarchy
// root. The property must also be declared via Property.
func (e *EntityBuilder) Discriminator(property string) *EntityBuilder {
	e.eb.et.discProp = &Property{Name: property} // placeholder, resolved at Build
	return e
}

// DiscriminatorValue sets this concrete type's discriminator value.
func (e *EntityBuilder) DiscriminatorValue(v any) *EntityBuilder {
	e.eb.et.DiscriminatorValue = v
	return e
}

// Property declares a scalar property. storeName defaults to name.
func (e *EntityBuilder) Property(name string, goType reflect.Type) *PropertyBuilder {
	p := &Property{Name: name, StoreName: name, GoType: goType}
	e.eb.et.properties = append(e.eb.et.properties, p)
	return &PropertyBuilder{entity: e, p: p}
}

// Navigation declares a reference navigation to the named target type.
func (e *EntityBuilder) Navigation(name, target string) *NavigationBuilder {
	nb := &navBuilder{
		nav:        &Navigation{Name: name, StoreName: name, Declaring: e.eb.et},
		targetName: target,
	}
	e.eb.navs = append(e.eb.navs, nb)
	return &NavigationBuilder{entity: e, nb: nb}
}

// PropertyBuilder configures one property.
type PropertyBuilder struct {
	entity *EntityBuilder
	p      *Property
}

// StoreName overrides the store field name.
func (p *PropertyBuilder) StoreName(name string) *PropertyBuilder {
	p.p.StoreName = name
	return p
}

// Nullable marks the property nullable.
func (p *PropertyBuilder) Nullable() *PropertyBuilder {
	p.p.Nullable = true
	return p
}

// Entity returns to the owning entity builder.
func (p *PropertyBuilder) Entity() *EntityBuilder { return p.entity }

// NavigationBuilder configures one navigation.
type NavigationBuilder struct {
	entity *EntityBuilder
	nb     *navBuilder
}

// Owned marks the navigation as an ownership: the target is embedded
// in the owner's document under the navigation's store name.
func (n *NavigationBuilder) Owned() *NavigationBuilder {
	n.nb.nav.Owned = true
	return n
}

// OnDependent marks the dependent-to-principal back-reference.
func (n *NavigationBuilder) OnDependent() *NavigationBuilder {
	n.nb.nav.OnDependent = true
	return n
}

// Collection marks the navigation to-many.
func (n *NavigationBuilder) Collection() *NavigationBuilder {
	n.nb.nav.Collection = true
	return n
}

// StoreName overrides the embedded field name.
func (n *NavigationBuilder) StoreName(name string) *NavigationBuilder {
	n.nb.nav.StoreName = name
	return n
}

// Entity returns to the owning entity builder.
func (n *NavigationBuilder) Entity() *EntityBuilder { return n.entity }

// Build resolves base types, navigation targets, discriminator
// properties, property mappings, and struct field indexes, then
// returns the immutable Model.
func (b *ModelBuilder) Build() (*Model, error) {
	m := &Model{
		entities: make(map[string]*EntityType, len(b.entities)),
		mappings: b.mappings,
	}
	for _, eb := range b.entities {
		if _, dup := m.entities[eb.et.Name]; dup {
			return nil, fmt.Errorf("duplicate entity type %q", eb.et.Name)
		}
		m.entities[eb.et.Name] = eb.et
		m.ordered = append(m.ordered, eb.et)
	}

	for _, eb := range b.entities {
		et := eb.et
		if eb.baseName != "" {
			base := m.entities[eb.baseName]
			if base == nil {
				return nil, fmt.Errorf("entity %q: unknown base type %q", et.Name, eb.baseName)
			}
			et.base = base
			base.derived = append(base.derived, et)
		}
		for _, nb := range eb.navs {
			target := m.entities[nb.targetName]
			if target == nil {
				return nil, fmt.Errorf("entity %q: navigation %q targets unknown type %q",
					et.Name, nb.nav.Name, nb.targetName)
			}
			nb.nav.Target = target
			et.navigations = append(et.navigations, nb.nav)
		}
	}

	for _, eb := range b.entities {
		if err := b.finishEntity(eb.et); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (b *ModelBuilder) finishEntity(et *EntityType) error {
	if et.base != nil {
		et.Container = et.RootType().Container
	}

	// Resolve the discriminator placeholder to the declared property.
	if et.discProp != nil {
		resolved := et.Property(et.discProp.Name)
		if resolved == nil {
			return fmt.Errorf("entity %q: discriminator property %q not declared", et.Name, et.discProp.Name)
		}
		et.discProp = resolved
	}

	for _, p := range et.properties {
		if p.Mapping == nil {
			p.Mapping = b.mappings.FindMapping(p.GoType)
		}
		if et.GoType != nil {
			f, ok := et.GoType.FieldByName(p.Name)
			if !ok {
				return fmt.Errorf("entity %q: struct %s has no field %q", et.Name, et.GoType, p.Name)
			}
			p.fieldIndex = f.Index
		}
	}
	for _, n := range et.navigations {
		if et.GoType != nil && !n.OnDependent {
			f, ok := et.GoType.FieldByName(n.Name)
			if !ok {
				return fmt.Errorf("entity %q: struct %s has no field %q", et.Name, et.GoType, n.Name)
			}
			n.fieldIndex = f.Index
		}
	}
	return nil
}
