package translate

import (
	"reflect"
	"strings"

	"github.com/roach88/entq/internal/sqlexpr"
)

// likeEscape escapes LIKE wildcards in a literal fragment. The
// backslash is declared as the escape character on generated LIKE
// nodes.
const likeEscapeChar = `\`

// stringTranslator handles the string method surface: pattern methods
// lower to LIKE when the fragment is a literal and to positional
// functions otherwise.
type stringTranslator struct {
	f *sqlexpr.Factory
}

func newStringTranslator(f *sqlexpr.Factory) *stringTranslator {
	return &stringTranslator{f: f}
}

var stringType = reflect.TypeOf("")

func (t *stringTranslator) TranslateMethod(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error) {
	if instance == nil || instance.ValueType() != stringType {
		return nil, nil
	}
	switch method {
	case "Contains":
		if len(args) != 1 {
			return nil, nil
		}
		return t.patternMatch(instance, args[0], "%", "%"), nil
	case "StartsWith":
		if len(args) != 1 {
			return nil, nil
		}
		return t.patternMatch(instance, args[0], "", "%"), nil
	case "EndsWith":
		if len(args) != 1 {
			return nil, nil
		}
		return t.patternMatch(instance, args[0], "%", ""), nil
	case "ToUpper":
		return t.f.Function("UPPER", []sqlexpr.Expression{instance}, stringType, instance.Mapping()), nil
	case "ToLower":
		return t.f.Function("LOWER", []sqlexpr.Expression{instance}, stringType, instance.Mapping()), nil
	case "Trim":
		return t.f.Function("TRIM", []sqlexpr.Expression{instance}, stringType, instance.Mapping()), nil
	}
	return nil, nil
}

func (t *stringTranslator) TranslateMember(instance sqlexpr.Expression, member string, resultType reflect.Type) (sqlexpr.Expression, error) {
	if instance == nil || instance.ValueType() != stringType {
		return nil, nil
	}
	if member == "Length" {
		return t.f.Function("LENGTH", []sqlexpr.Expression{instance}, reflect.TypeOf(int64(0)), nil), nil
	}
	return nil, nil
}

// patternMatch lowers to LIKE when the fragment is a literal (the
// wildcards can be escaped at translation time); otherwise to an
// INSTR comparison, since a non-literal fragment cannot be safely
// embedded in a pattern.
func (t *stringTranslator) patternMatch(instance, fragment sqlexpr.Expression, prefix, suffix string) sqlexpr.Expression {
	if c, ok := fragment.(*sqlexpr.Constant); ok {
		if s, ok := c.Value.(string); ok {
			pattern := prefix + escapeLike(s) + suffix
			return t.f.Like(instance, t.f.TypedConstant(pattern, c.Mapping()), t.f.Constant(likeEscapeChar))
		}
	}
	int64Type := reflect.TypeOf(int64(0))
	switch {
	case prefix == "" && suffix == "%": // StartsWith
		instr := t.f.Function("INSTR", []sqlexpr.Expression{instance, fragment}, int64Type, nil)
		return t.f.Equal(instr, t.f.Constant(int64(1)))
	case prefix == "%" && suffix == "": // EndsWith
		length := t.f.Function("LENGTH", []sqlexpr.Expression{fragment}, int64Type, nil)
		tail := t.f.Function("SUBSTR", []sqlexpr.Expression{instance, t.f.Negate(length)}, stringType, instance.Mapping())
		return t.f.Equal(tail, fragment)
	default: // Contains
		instr := t.f.Function("INSTR", []sqlexpr.Expression{instance, fragment}, int64Type, nil)
		return t.f.GreaterThan(instr, t.f.Constant(int64(0)))
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(
		likeEscapeChar, likeEscapeChar+likeEscapeChar,
		"%", likeEscapeChar+"%",
		"_", likeEscapeChar+"_",
	)
	return r.Replace(s)
}
