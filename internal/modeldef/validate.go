package modeldef

import (
	"fmt"

	"github.com/roach88/entq/internal/metadata"
)

// Validation error codes.
const (
	ErrDuplicateStoreName   = "M101" // two properties share a store name
	ErrMissingDiscriminator = "M102" // hierarchy root lacks a discriminator
	ErrMissingDiscValue     = "M103" // concrete hierarchy member lacks a discriminator value
	ErrDuplicateDiscValue   = "M104" // two concrete types share a discriminator value
	ErrOwnedCollection      = "M105" // owned collection navigations are not supported
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Code    string `json:"code"`
	Entity  string `json:"entity"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	loc := e.Entity
	if e.Field != "" {
		loc = e.Entity + "." + e.Field
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, loc, e.Message)
}

// Validate checks cross-entity model rules. Returns all errors found
// (does not fail-fast).
func Validate(m *metadata.Model) []ValidationError {
	var errs []ValidationError
	for _, et := range m.Entities() {
		errs = append(errs, validateEntity(et)...)
	}
	return errs
}

func validateEntity(et *metadata.EntityType) []ValidationError {
	var errs []ValidationError

	stores := make(map[string]string)
	for _, p := range et.Properties() {
		if prev, ok := stores[p.StoreName]; ok && prev != p.Name {
			errs = append(errs, ValidationError{
				Code:    ErrDuplicateStoreName,
				Entity:  et.Name,
				Field:   p.Name,
				Message: fmt.Sprintf("store name %q already used by property %q", p.StoreName, prev),
			})
		}
		stores[p.StoreName] = p.Name
	}

	// Hierarchy rules apply to roots with derived types.
	if et.BaseType() == nil && len(et.DerivedTypes()) > 0 {
		if et.DiscriminatorProperty() == nil {
			errs = append(errs, ValidationError{
				Code:    ErrMissingDiscriminator,
				Entity:  et.Name,
				Message: "hierarchy root must declare a discriminator property",
			})
		} else {
			seen := make(map[any]string)
			concrete := et.ConcreteDerivedTypes()
			if !et.Abstract {
				concrete = append([]*metadata.EntityType{et}, concrete...)
			}
			for _, c := range concrete {
				if c.DiscriminatorValue == nil {
					errs = append(errs, ValidationError{
						Code:    ErrMissingDiscValue,
						Entity:  c.Name,
						Message: "concrete hierarchy member must declare a discriminator value",
					})
					continue
				}
				if prev, dup := seen[c.DiscriminatorValue]; dup {
					errs = append(errs, ValidationError{
						Code:   ErrDuplicateDiscValue,
						Entity: c.Name,
						Message: fmt.Sprintf("discriminator value %v already used by %q",
							c.DiscriminatorValue, prev),
					})
				}
				seen[c.DiscriminatorValue] = c.Name
			}
		}
	}

	for _, n := range et.Navigations() {
		if n.Owned && n.Collection {
			errs = append(errs, ValidationError{
				Code:    ErrOwnedCollection,
				Entity:  et.Name,
				Field:   n.Name,
				Message: "owned collection navigations are not supported",
			})
		}
	}
	return errs
}
