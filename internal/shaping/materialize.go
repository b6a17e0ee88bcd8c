package shaping

import (
	"fmt"
	"reflect"

	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/querytree"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/store"
)

// compileEntity lowers an entity shaper to its materializer.
//
// Top-level entities read their fields from the row record under the
// projection aliases assigned during finalization. Nested/owned
// entities read from their document region under store field names -
// the owning navigation's declared name locates the region itself.
func (c *Compiler) compileEntity(es *querytree.EntityShaper, topLevel bool) (Shaper, error) {
	var ep *sqlexpr.EntityProjection
	sel := es.Binding.Select
	if topLevel {
		bound, err := sel.Mapping().Get(es.Binding.Member)
		if err != nil {
			return nil, err
		}
		p, ok := bound.(*sqlexpr.EntityProjection)
		if !ok {
			return nil, &sqlexpr.TranslationError{
				Code:    sqlexpr.ErrCodeMissingProjection,
				Message: "entity shaper member is not an entity projection",
				Member:  es.Binding.Member.String(),
			}
		}
		ep = p
	}

	// readKey locates one field of this entity in its record region.
	readKey := func(p *metadata.Property) (string, error) {
		if !topLevel {
			return p.StoreName, nil
		}
		col := ep.BindProperty(p.Name)
		if col == nil {
			return "", &sqlexpr.TranslationError{
				Code:    sqlexpr.ErrCodeMissingProjection,
				Message: "property not covered by entity projection",
				Member:  p.Name,
			}
		}
		idx, ok := sel.ProjectionIndexOf(col)
		if !ok {
			return "", &sqlexpr.TranslationError{
				Code:    sqlexpr.ErrCodeMissingProjection,
				Message: "property column was not materialized",
				Member:  p.Name,
			}
		}
		return sel.Projections()[idx].Alias, nil
	}

	et := es.EntityType
	discProp := et.DiscriminatorProperty()

	candidates := []*metadata.EntityType{et}
	if discProp != nil {
		candidates = et.ConcreteDerivedTypes()
		if !et.Abstract {
			candidates = append([]*metadata.EntityType{et}, candidates...)
		}
	} else if et.Abstract {
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeUnsupported,
			Message: "abstract entity type without a discriminator cannot materialize",
			Member:  et.Name,
		}
	}

	materializers := make(map[*metadata.EntityType]*typeMaterializer, len(candidates))
	for _, concrete := range candidates {
		tm, err := c.buildTypeMaterializer(concrete, es.Children, readKey, topLevel, sel)
		if err != nil {
			return nil, err
		}
		materializers[concrete] = tm
	}

	var discKey string
	if discProp != nil {
		k, err := readKey(discProp)
		if err != nil {
			return nil, err
		}
		discKey = k
	}

	nullable := es.Nullable
	return func(rec store.Record) (any, error) {
		if rec == nil {
			if nullable {
				return nil, nil
			}
			return nil, fmt.Errorf("null record for non-nullable entity %s", et.Name)
		}
		concrete := et
		if discProp != nil {
			raw, _ := rec.Field(discKey)
			resolved, err := et.ConcreteTypeFor(raw)
			if err != nil {
				return nil, err
			}
			concrete = resolved
		}
		tm := materializers[concrete]
		if tm == nil {
			return nil, fmt.Errorf("no materializer for concrete type %s", concrete.Name)
		}
		return tm.materialize(rec)
	}, nil
}

// typeMaterializer materializes one concrete entity type from a record
// region.
type typeMaterializer struct {
	entityType *metadata.EntityType
	fields     []fieldBinding
	navs       []navBinding
}

type fieldBinding struct {
	prop  *metadata.Property
	key   string
	index []int
}

type navBinding struct {
	nav    *metadata.Navigation
	key    string
	index  []int
	shaper Shaper
}

func (c *Compiler) buildTypeMaterializer(
	concrete *metadata.EntityType,
	children []*querytree.EntityShaper,
	readKey func(*metadata.Property) (string, error),
	topLevel bool,
	sel *sqlexpr.SelectExpression,
) (*typeMaterializer, error) {
	tm := &typeMaterializer{entityType: concrete}

	for _, p := range concrete.Properties() {
		key, err := readKey(p)
		if err != nil {
			return nil, err
		}
		fb := fieldBinding{prop: p, key: key}
		if concrete.GoType != nil {
			// Resolve against the concrete struct: inherited members
			// resolve through embedded base fields.
			idx, err := structIndex(concrete, p.Name)
			if err != nil {
				return nil, err
			}
			fb.index = idx
		}
		tm.fields = append(tm.fields, fb)
	}

	for _, child := range children {
		nav := child.ParentNavigation
		// A child belongs to this concrete type only if its owning
		// navigation is declared on it (or inherited).
		if concrete.Navigation(nav.Name) != nav {
			continue
		}
		key := nav.StoreName
		if topLevel {
			bound, err := sel.Mapping().Get(sqlexpr.RootMember())
			if err != nil {
				return nil, err
			}
			ep, ok := bound.(*sqlexpr.EntityProjection)
			if !ok {
				return nil, &sqlexpr.TranslationError{
					Code:    sqlexpr.ErrCodeMissingProjection,
					Message: "root member lost its entity projection",
				}
			}
			col := ep.BindNavigation(nav.Name)
			if col == nil {
				return nil, &sqlexpr.TranslationError{
					Code:    sqlexpr.ErrCodeMissingProjection,
					Message: "owned navigation not covered by entity projection",
					Member:  nav.Name,
				}
			}
			idx, ok := sel.ProjectionIndexOf(col)
			if !ok {
				return nil, &sqlexpr.TranslationError{
					Code:    sqlexpr.ErrCodeMissingProjection,
					Message: "owned navigation column was not materialized",
					Member:  nav.Name,
				}
			}
			key = sel.Projections()[idx].Alias
		}
		shaper, err := c.compileEntity(child, false)
		if err != nil {
			return nil, err
		}
		nb := navBinding{nav: nav, key: key, shaper: shaper}
		if concrete.GoType != nil {
			idx, err := structIndex(concrete, nav.Name)
			if err != nil {
				return nil, err
			}
			nb.index = idx
		}
		tm.navs = append(tm.navs, nb)
	}
	return tm, nil
}

func (tm *typeMaterializer) materialize(rec store.Record) (any, error) {
	if tm.entityType.GoType != nil {
		return tm.materializeTyped(rec)
	}
	return tm.materializeBuffer(rec)
}

// materializeTyped builds a pointer to a freshly allocated struct,
// assigning converted values through cached field indexes.
func (tm *typeMaterializer) materializeTyped(rec store.Record) (any, error) {
	rv := reflect.New(tm.entityType.GoType)
	elem := rv.Elem()

	for _, fb := range tm.fields {
		raw, ok := rec.Field(fb.key)
		if !ok || raw == nil {
			// Null store value materializes the field's default; the
			// converter is never invoked on null.
			continue
		}
		v, err := fb.prop.Mapping.Convert(raw)
		if err != nil {
			return nil, fmt.Errorf("property %s.%s: %w", tm.entityType.Name, fb.prop.Name, err)
		}
		if err := assignField(elem.FieldByIndex(fb.index), v); err != nil {
			return nil, fmt.Errorf("property %s.%s: %w", tm.entityType.Name, fb.prop.Name, err)
		}
	}

	for _, nb := range tm.navs {
		raw, ok := rec.Field(nb.key)
		if !ok || raw == nil {
			continue
		}
		region, err := store.AsDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("navigation %s.%s: %w", tm.entityType.Name, nb.nav.Name, err)
		}
		if region == nil {
			continue
		}
		child, err := nb.shaper(region)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		if err := assignField(elem.FieldByIndex(nb.index), child); err != nil {
			return nil, fmt.Errorf("navigation %s.%s: %w", tm.entityType.Name, nb.nav.Name, err)
		}
	}
	return rv.Interface(), nil
}

// materializeBuffer builds a value buffer for dynamic entity types:
// property and navigation values keyed by member name.
func (tm *typeMaterializer) materializeBuffer(rec store.Record) (any, error) {
	buf := make(map[string]any, len(tm.fields)+len(tm.navs))
	for _, fb := range tm.fields {
		raw, ok := rec.Field(fb.key)
		if !ok || raw == nil {
			buf[fb.prop.Name] = nil
			continue
		}
		v, err := fb.prop.Mapping.Convert(raw)
		if err != nil {
			return nil, fmt.Errorf("property %s.%s: %w", tm.entityType.Name, fb.prop.Name, err)
		}
		buf[fb.prop.Name] = v
	}
	for _, nb := range tm.navs {
		raw, ok := rec.Field(nb.key)
		if !ok || raw == nil {
			buf[nb.nav.Name] = nil
			continue
		}
		region, err := store.AsDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("navigation %s.%s: %w", tm.entityType.Name, nb.nav.Name, err)
		}
		if region == nil {
			buf[nb.nav.Name] = nil
			continue
		}
		child, err := nb.shaper(region)
		if err != nil {
			return nil, err
		}
		buf[nb.nav.Name] = child
	}
	return buf, nil
}

// structIndex resolves a member name to its field index path on the
// concrete struct type.
func structIndex(et *metadata.EntityType, name string) ([]int, error) {
	f, ok := et.GoType.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("entity %s: struct %s has no field %q", et.Name, et.GoType, name)
	}
	return f.Index, nil
}

// assignField sets a struct field from a converted value, widening
// through reflect conversion and allocating for pointer fields.
func assignField(field reflect.Value, v any) error {
	rv := reflect.ValueOf(v)
	ft := field.Type()

	if ft.Kind() == reflect.Pointer && rv.Type() != ft {
		p := reflect.New(ft.Elem())
		if err := assignField(p.Elem(), v); err != nil {
			return err
		}
		field.Set(p)
		return nil
	}
	if rv.Type().AssignableTo(ft) {
		field.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(ft) {
		field.Set(rv.Convert(ft))
		return nil
	}
	return fmt.Errorf("cannot assign %s to field of type %s", rv.Type(), ft)
}
