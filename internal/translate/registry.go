// Package translate maps method and member invocations from the source
// query shape onto physical expression nodes.
//
// A translator is tried against an (instance, selector, args) triple
// and either returns an expression or reports "no match" by returning
// (nil, nil). No match is a normal probing outcome, never an error;
// only a genuinely broken input is surfaced as an error and it aborts
// dispatch.
//
// The registry holds plugin translators followed by builtin
// translators in one explicit ordered slice, and the first translator
// to return a non-nil result wins. The order is a contract: plugins
// override builtins on purpose, so the list is never reordered or
// deduplicated.
package translate

import (
	"reflect"

	"github.com/roach88/entq/internal/sqlexpr"
)

// MethodTranslator turns one method invocation into a physical
// expression. Returning (nil, nil) means "not applicable".
type MethodTranslator interface {
	TranslateMethod(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error)
}

// MemberTranslator turns one member access into a physical expression.
// Returning (nil, nil) means "not applicable".
type MemberTranslator interface {
	TranslateMember(instance sqlexpr.Expression, member string, resultType reflect.Type) (sqlexpr.Expression, error)
}

// Registry dispatches method and member translations in
// plugin-then-builtin order with a short-circuit on first match.
type Registry struct {
	methods []MethodTranslator
	members []MemberTranslator
}

// NewRegistry creates a registry holding the builtin translators,
// with the given plugins prepended in registration order.
func NewRegistry(factory *sqlexpr.Factory, plugins ...any) *Registry {
	r := &Registry{}
	for _, p := range plugins {
		if mt, ok := p.(MethodTranslator); ok {
			r.methods = append(r.methods, mt)
		}
		if mt, ok := p.(MemberTranslator); ok {
			r.members = append(r.members, mt)
		}
	}
	builtins := []any{
		newStringTranslator(factory),
		newGuidTranslator(factory),
		newMathTranslator(factory),
	}
	for _, b := range builtins {
		if mt, ok := b.(MethodTranslator); ok {
			r.methods = append(r.methods, mt)
		}
		if mt, ok := b.(MemberTranslator); ok {
			r.members = append(r.members, mt)
		}
	}
	return r
}

// Method dispatches a method invocation. Returns (nil, nil) when no
// translator matched; the caller decides whether that is fatal.
func (r *Registry) Method(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error) {
	for _, t := range r.methods {
		e, err := t.TranslateMethod(instance, method, args)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return nil, nil
}

// Member dispatches a member access. Returns (nil, nil) when no
// translator matched.
func (r *Registry) Member(instance sqlexpr.Expression, member string, resultType reflect.Type) (sqlexpr.Expression, error) {
	for _, t := range r.members {
		e, err := t.TranslateMember(instance, member, resultType)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return nil, nil
}

// RequireMethod dispatches a method invocation and turns "no match"
// into an UNTRANSLATABLE error.
func (r *Registry) RequireMethod(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error) {
	e, err := r.Method(instance, method, args)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &sqlexpr.TranslationError{
			Code:    sqlexpr.ErrCodeUntranslatable,
			Message: "no translator accepted method",
			Member:  method,
		}
	}
	return e, nil
}
