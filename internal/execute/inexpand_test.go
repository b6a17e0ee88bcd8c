package execute

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/testutil"
)

// inFixture builds a select whose predicate is a deferred IN over the
// Age column, bound to the "ages" runtime parameter.
func inFixture(t *testing.T, negated bool) (*sqlexpr.SelectExpression, *sqlexpr.Factory) {
	t.Helper()
	m := testutil.CustomerModel(t)
	f := sqlexpr.NewFactory(m.Mappings())
	age := f.Column(m.Entity("Customer").Property("Age"))

	sel := sqlexpr.NewSelect("customers")
	param := f.Parameter("ages", reflect.TypeOf([]int64(nil)))
	require.NoError(t, sel.ApplyPredicate(f.InParameter(age, param, negated)))
	return sel, f
}

func TestExpandInParameters_NonNullValues(t *testing.T) {
	sel, f := inFixture(t, false)

	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []int64{30, 40}})
	require.NoError(t, err)

	in, ok := out.Predicate().(*sqlexpr.In)
	require.True(t, ok)
	assert.Nil(t, in.ValuesParameter)
	require.Len(t, in.Values, 2)
	assert.Equal(t, int64(30), in.Values[0].(*sqlexpr.Constant).Value)
	assert.Equal(t, int64(40), in.Values[1].(*sqlexpr.Constant).Value)
	assert.False(t, in.Negated)
}

func TestExpandInParameters_NullsBecomeIsNull(t *testing.T) {
	sel, f := inFixture(t, false)

	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []any{int64(30), nil}})
	require.NoError(t, err)

	or, ok := out.Predicate().(*sqlexpr.Binary)
	require.True(t, ok)
	assert.Equal(t, sqlexpr.OpOrElse, or.Op)

	in := or.Left.(*sqlexpr.In)
	require.Len(t, in.Values, 1)
	isNull := or.Right.(*sqlexpr.Unary)
	assert.Equal(t, sqlexpr.OpIsNull, isNull.Op)
}

func TestExpandInParameters_OnlyNulls(t *testing.T) {
	sel, f := inFixture(t, false)

	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []any{nil, nil}})
	require.NoError(t, err)

	isNull, ok := out.Predicate().(*sqlexpr.Unary)
	require.True(t, ok)
	assert.Equal(t, sqlexpr.OpIsNull, isNull.Op)
}

func TestExpandInParameters_EmptyListIsFalse(t *testing.T) {
	sel, f := inFixture(t, false)

	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []int64{}})
	require.NoError(t, err)

	c, ok := out.Predicate().(*sqlexpr.Constant)
	require.True(t, ok)
	assert.Equal(t, false, c.Value)
}

func TestExpandInParameters_NegatedWrapsInNot(t *testing.T) {
	sel, f := inFixture(t, true)

	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []int64{30}})
	require.NoError(t, err)

	not, ok := out.Predicate().(*sqlexpr.Unary)
	require.True(t, ok)
	assert.Equal(t, sqlexpr.OpNot, not.Op)
	in := not.Operand.(*sqlexpr.In)
	require.Len(t, in.Values, 1)
	assert.False(t, in.Negated)
}

func TestExpandInParameters_ItemMappingSpreadsToValues(t *testing.T) {
	sel, f := inFixture(t, false)

	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []int64{25}})
	require.NoError(t, err)

	in := out.Predicate().(*sqlexpr.In)
	assert.Same(t, in.Item.Mapping(), in.Values[0].Mapping())
}

func TestExpandInParameters_MissingParameter(t *testing.T) {
	sel, f := inFixture(t, false)

	_, err := ExpandInParameters(sel, f, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ages"`)
}

func TestExpandInParameters_NonSliceValue(t *testing.T) {
	sel, f := inFixture(t, false)

	_, err := ExpandInParameters(sel, f, map[string]any{"ages": int64(30)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slice")
}

func TestExpandInParameters_PointerElementsUnwrap(t *testing.T) {
	sel, f := inFixture(t, false)

	v := int64(33)
	out, err := ExpandInParameters(sel, f, map[string]any{"ages": []*int64{&v, nil}})
	require.NoError(t, err)

	or := out.Predicate().(*sqlexpr.Binary)
	in := or.Left.(*sqlexpr.In)
	require.Len(t, in.Values, 1)
	assert.Equal(t, int64(33), in.Values[0].(*sqlexpr.Constant).Value)
}

func TestExpandInParameters_UntouchedQueryKeepsIdentity(t *testing.T) {
	m := testutil.CustomerModel(t)
	f := sqlexpr.NewFactory(m.Mappings())
	sel := sqlexpr.NewSelect("customers")
	require.NoError(t, sel.ApplyPredicate(f.Equal(
		f.Column(m.Entity("Customer").Property("Name")),
		f.Constant("Ada"),
	)))

	out, err := ExpandInParameters(sel, f, nil)
	require.NoError(t, err)
	assert.Same(t, sel, out)
}
