// Package modeldef loads entity model definitions written in CUE and
// compiles them into the metadata model the query pipeline consumes.
//
// A model definition is a CUE file (or directory of files) with one
// top-level "entities" struct:
//
//	entities: Blog: {
//		container: "Blogs"
//		properties: {
//			Id:    {type: "int", storeName: "id"}
//			Title: {type: "string", nullable: true}
//		}
//		navigations: {
//			Address: {target: "Address", owned: true}
//		}
//	}
//
//	entities: Post: {
//		abstract:      true
//		discriminator: "Kind"
//		properties: Kind: {type: "string"}
//	}
//
//	entities: Article: {
//		base:               "Post"
//		discriminatorValue: "article"
//	}
//
// CUE-loaded entities are dynamic: they materialize into value
// buffers, not Go structs. Registering Go struct types is only
// possible through the metadata.ModelBuilder API directly.
package modeldef

import (
	"fmt"
	"reflect"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/roach88/entq/internal/metadata"
)

// CompileError represents a model compilation error with source
// position.
type CompileError struct {
	Entity  string
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	loc := e.Field
	if e.Entity != "" {
		loc = e.Entity + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), loc, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

var propertyTypes = map[string]reflect.Type{
	"string": reflect.TypeOf(""),
	"int":    reflect.TypeOf(int64(0)),
	"float":  reflect.TypeOf(float64(0)),
	"bool":   reflect.TypeOf(false),
	"time":   reflect.TypeOf(time.Time{}),
	"uuid":   reflect.TypeOf(uuid.UUID{}),
	"bytes":  reflect.TypeOf([]byte(nil)),
}

// Compile parses a CUE value holding an "entities" struct into a
// metadata model.
func Compile(v cue.Value) (*metadata.Model, error) {
	if err := v.Err(); err != nil {
		return nil, err
	}
	entities := v.LookupPath(cue.ParsePath("entities"))
	if !entities.Exists() {
		return nil, &CompileError{Field: "entities", Message: "entities struct is required", Pos: v.Pos()}
	}

	builder := metadata.NewModelBuilder()
	iter, err := entities.Fields()
	if err != nil {
		return nil, err
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		if err := compileEntity(builder, name, iter.Value()); err != nil {
			return nil, err
		}
	}

	model, err := builder.Build()
	if err != nil {
		return nil, err
	}
	if errs := Validate(model); len(errs) > 0 {
		return nil, errs[0]
	}
	return model, nil
}

func compileEntity(builder *metadata.ModelBuilder, name string, v cue.Value) error {
	eb := builder.Entity(name, nil)

	if container, ok, err := stringField(v, "container"); err != nil {
		return wrapField(name, "container", err, v)
	} else if ok {
		eb.Container(container)
	}
	if base, ok, err := stringField(v, "base"); err != nil {
		return wrapField(name, "base", err, v)
	} else if ok {
		eb.BaseType(base)
	}
	if abstract, err := boolField(v, "abstract"); err != nil {
		return wrapField(name, "abstract", err, v)
	} else if abstract {
		eb.Abstract()
	}
	if disc, ok, err := stringField(v, "discriminator"); err != nil {
		return wrapField(name, "discriminator", err, v)
	} else if ok {
		eb.Discriminator(disc)
	}
	discVal := v.LookupPath(cue.ParsePath("discriminatorValue"))
	if discVal.Exists() {
		dv, err := scalarValue(discVal)
		if err != nil {
			return wrapField(name, "discriminatorValue", err, v)
		}
		eb.DiscriminatorValue(dv)
	}

	props := v.LookupPath(cue.ParsePath("properties"))
	if props.Exists() {
		iter, err := props.Fields()
		if err != nil {
			return wrapField(name, "properties", err, v)
		}
		for iter.Next() {
			if err := compileProperty(eb, name, iter.Selector().Unquoted(), iter.Value()); err != nil {
				return err
			}
		}
	}

	navs := v.LookupPath(cue.ParsePath("navigations"))
	if navs.Exists() {
		iter, err := navs.Fields()
		if err != nil {
			return wrapField(name, "navigations", err, v)
		}
		for iter.Next() {
			if err := compileNavigation(eb, name, iter.Selector().Unquoted(), iter.Value()); err != nil {
				return err
			}
		}
	}
	return nil
}

func compileProperty(eb *metadata.EntityBuilder, entity, name string, v cue.Value) error {
	typeName, ok, err := stringField(v, "type")
	if err != nil {
		return wrapField(entity, name+".type", err, v)
	}
	if !ok {
		return &CompileError{Entity: entity, Field: name, Message: "property type is required", Pos: v.Pos()}
	}
	goType, ok := propertyTypes[typeName]
	if !ok {
		return &CompileError{Entity: entity, Field: name, Message: fmt.Sprintf("unknown property type %q", typeName), Pos: v.Pos()}
	}
	pb := eb.Property(name, goType)
	if storeName, ok, err := stringField(v, "storeName"); err != nil {
		return wrapField(entity, name+".storeName", err, v)
	} else if ok {
		pb.StoreName(storeName)
	}
	if nullable, err := boolField(v, "nullable"); err != nil {
		return wrapField(entity, name+".nullable", err, v)
	} else if nullable {
		pb.Nullable()
	}
	return nil
}

func compileNavigation(eb *metadata.EntityBuilder, entity, name string, v cue.Value) error {
	target, ok, err := stringField(v, "target")
	if err != nil {
		return wrapField(entity, name+".target", err, v)
	}
	if !ok {
		return &CompileError{Entity: entity, Field: name, Message: "navigation target is required", Pos: v.Pos()}
	}
	nb := eb.Navigation(name, target)
	if owned, err := boolField(v, "owned"); err != nil {
		return wrapField(entity, name+".owned", err, v)
	} else if owned {
		nb.Owned()
	}
	if onDependent, err := boolField(v, "onDependent"); err != nil {
		return wrapField(entity, name+".onDependent", err, v)
	} else if onDependent {
		nb.OnDependent()
	}
	if collection, err := boolField(v, "collection"); err != nil {
		return wrapField(entity, name+".collection", err, v)
	} else if collection {
		nb.Collection()
	}
	if storeName, ok, err := stringField(v, "storeName"); err != nil {
		return wrapField(entity, name+".storeName", err, v)
	} else if ok {
		nb.StoreName(storeName)
	}
	return nil
}

func stringField(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func boolField(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	return fv.Bool()
}

func scalarValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.BoolKind:
		return v.Bool()
	default:
		return nil, fmt.Errorf("discriminator values must be string, int, or bool")
	}
}

func wrapField(entity, field string, err error, v cue.Value) error {
	if ce, ok := err.(*CompileError); ok {
		return ce
	}
	return &CompileError{Entity: entity, Field: field, Message: err.Error(), Pos: v.Pos()}
}
