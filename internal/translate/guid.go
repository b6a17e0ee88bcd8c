package translate

import (
	"github.com/google/uuid"

	"github.com/roach88/entq/internal/sqlexpr"
)

// guidTranslator handles GUID construction and parsing. NewGuid lowers
// to a constant generated at translation time: the store has no native
// GUID generator, and a per-translation value matches the source
// semantics of one fresh GUID per query compilation.
type guidTranslator struct {
	f *sqlexpr.Factory
}

func newGuidTranslator(f *sqlexpr.Factory) *guidTranslator {
	return &guidTranslator{f: f}
}

func (t *guidTranslator) TranslateMethod(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error) {
	switch method {
	case "NewGuid":
		if instance != nil || len(args) != 0 {
			return nil, nil
		}
		return t.f.Constant(uuid.New()), nil
	case "GuidParse":
		if instance != nil || len(args) != 1 {
			return nil, nil
		}
		c, ok := args[0].(*sqlexpr.Constant)
		if !ok {
			return nil, nil
		}
		s, ok := c.Value.(string)
		if !ok {
			return nil, nil
		}
		id, err := uuid.Parse(s)
		if err != nil {
			// A malformed literal is a broken input, not a missed
			// match: later translators cannot do better.
			return nil, err
		}
		return t.f.Constant(id), nil
	}
	return nil, nil
}
