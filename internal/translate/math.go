package translate

import (
	"github.com/roach88/entq/internal/sqlexpr"
)

// mathTranslator lowers arithmetic helper methods onto store
// functions, preserving the operand's type and mapping.
type mathTranslator struct {
	f *sqlexpr.Factory
}

func newMathTranslator(f *sqlexpr.Factory) *mathTranslator {
	return &mathTranslator{f: f}
}

var mathFunctions = map[string]string{
	"Abs":     "ABS",
	"Round":   "ROUND",
	"Ceiling": "CEIL",
	"Floor":   "FLOOR",
}

func (t *mathTranslator) TranslateMethod(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error) {
	name, ok := mathFunctions[method]
	if !ok {
		return nil, nil
	}
	if instance != nil || len(args) == 0 {
		return nil, nil
	}
	operand := args[0]
	return t.f.Function(name, args, operand.ValueType(), operand.Mapping()), nil
}
