package sqlexpr

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/metadata"
)

func TestMakeBinary_ComparisonYieldsBool(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	b := f.Equal(id, f.Constant(int64(1)))
	assert.Equal(t, reflect.TypeOf(false), b.ValueType())
	assert.Same(t, f.Mappings().BoolMapping(), b.Mapping())
}

func TestMakeBinary_ComparisonSharesOperandMapping(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	// An unmapped constant adopts the column's mapping.
	b := f.Equal(id, f.TypedConstant(int64(1), nil))
	right, ok := b.Right.(*Constant)
	require.True(t, ok)
	assert.Same(t, id.Mapping(), right.Mapping())
}

func TestMakeBinary_ArithmeticPreservesOperandType(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	b := f.Add(id, f.Constant(int64(1)), nil)
	assert.Equal(t, reflect.TypeOf(int64(0)), b.ValueType())
	assert.Same(t, id.Mapping(), b.Mapping())
}

func TestMakeBinary_ArithmeticHintWins(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	hint := &metadata.TypeMapping{StoreType: "REAL", GoType: reflect.TypeOf(float64(0))}
	b := f.Divide(id, f.TypedConstant(int64(2), nil), hint)
	assert.Same(t, hint, b.Mapping())

	right := b.Right.(*Constant)
	assert.Same(t, hint, right.Mapping())
}

func TestCoalesce_InfersFromOperands(t *testing.T) {
	f, m := personFactory(t)
	nick := f.Column(m.Entity("Person").Property("Nick"))

	b := f.Coalesce(nick, f.Constant("anonymous"), nil)
	assert.Equal(t, OpCoalesce, b.Op)
	assert.Same(t, nick.Mapping(), b.Mapping())
}

func TestUnaryConstructors(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))
	boolMapping := f.Mappings().BoolMapping()

	not := f.Not(f.Equal(id, f.Constant(int64(1))))
	assert.Equal(t, OpNot, not.Op)
	assert.Same(t, boolMapping, not.Mapping())

	neg := f.Negate(id)
	assert.Equal(t, OpNegate, neg.Op)
	assert.Same(t, id.Mapping(), neg.Mapping())

	isNull := f.IsNull(id)
	assert.Equal(t, OpIsNull, isNull.Op)
	assert.Equal(t, reflect.TypeOf(false), isNull.ValueType())

	isNotNull := f.IsNotNull(id)
	assert.Equal(t, OpIsNotNull, isNotNull.Op)
}

func TestLike_SpreadsOperandMapping(t *testing.T) {
	f, m := personFactory(t)
	name := f.Column(m.Entity("Person").Property("Name"))

	l := f.Like(name, f.TypedConstant("x%", nil), f.TypedConstant(`\`, nil))
	assert.Same(t, name.Mapping(), l.Pattern.Mapping())
	assert.Same(t, name.Mapping(), l.Escape.Mapping())
	assert.Equal(t, reflect.TypeOf(false), l.ValueType())
}

func TestInValues_AppliesItemMappingToList(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	in := f.InValues(id, []Expression{
		f.TypedConstant(int64(1), nil),
		f.TypedConstant(int64(2), nil),
	}, false)

	for _, v := range in.Values {
		assert.Same(t, id.Mapping(), v.Mapping())
	}
	assert.False(t, in.Negated)
}

func TestInParameter_SharesItemMapping(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	in := f.InParameter(id, &Parameter{Name: "ids"}, true)
	require.NotNil(t, in.ValuesParameter)
	assert.Same(t, id.Mapping(), in.ValuesParameter.Mapping())
	assert.True(t, in.Negated)
}

func TestInSubquery_RequiresSingleTypedColumn(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	// Zero-column subquery.
	sub := NewSelect("other")
	_, err := f.InSubquery(id, sub, false)
	require.Error(t, err)
	var te *TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeUntypedSubquery, te.Code)

	// Single column without a mapping.
	sub = NewSelect("other")
	_, err = sub.AddToProjection(f.TypedConstant(int64(1), nil), "v")
	require.NoError(t, err)
	_, err = f.InSubquery(id, sub, false)
	require.Error(t, err)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeUntypedSubquery, te.Code)

	// Single typed column is accepted.
	sub = NewSelect("other")
	_, err = sub.AddToProjection(f.Constant(int64(1)), "v")
	require.NoError(t, err)
	in, err := f.InSubquery(id, sub, false)
	require.NoError(t, err)
	assert.Same(t, sub, in.Subquery)
}

func TestCase_ResultTypeFromFirstTypedBranch(t *testing.T) {
	f, m := personFactory(t)
	id := f.Column(m.Entity("Person").Property("ID"))

	c := f.Case(nil, []CaseWhen{
		{Test: f.Equal(id, f.Constant(int64(1))), Result: f.Constant("one")},
		{Test: f.Equal(id, f.Constant(int64(2))), Result: f.TypedConstant("two", nil)},
	}, f.TypedConstant("many", nil))

	assert.Equal(t, reflect.TypeOf(""), c.ValueType())
	// Branch mapping propagates to every untyped result and the ELSE.
	stringMapping := f.Mappings().FindMapping(reflect.TypeOf(""))
	assert.Same(t, stringMapping, c.Whens[1].Result.Mapping())
	assert.Same(t, stringMapping, c.Else.Mapping())
}

func TestCase_SimpleFormSharesOperandMapping(t *testing.T) {
	f, m := personFactory(t)
	kind := f.Column(m.Entity("Person").Property("Name"))

	c := f.Case(kind, []CaseWhen{
		{Test: f.TypedConstant("a", nil), Result: f.Constant(int64(1))},
	}, nil)

	require.NotNil(t, c.Operand)
	assert.Same(t, kind.Mapping(), c.Whens[0].Test.Mapping())
}

func TestSelectEntity_NoHierarchyNoPredicate(t *testing.T) {
	f, m := personFactory(t)

	sel, err := f.SelectEntity(m.Entity("Person"))
	require.NoError(t, err)
	assert.Equal(t, "people", sel.Container())
	assert.Nil(t, sel.Predicate())
}

func TestSelectEntity_AbstractRootGetsMembershipPredicate(t *testing.T) {
	m := animalModel(t)
	f := NewFactory(m.Mappings())

	sel, err := f.SelectEntity(m.Entity("Animal"))
	require.NoError(t, err)

	in, ok := sel.Predicate().(*In)
	require.True(t, ok)
	col, ok := in.Item.(*Column)
	require.True(t, ok)
	assert.Equal(t, "kind", col.Name)

	var values []any
	for _, v := range in.Values {
		values = append(values, v.(*Constant).Value)
	}
	assert.ElementsMatch(t, []any{"cat", "dog"}, values)
}

func TestSelectEntity_SingleConcreteTypeGetsEquality(t *testing.T) {
	m := animalModel(t)
	f := NewFactory(m.Mappings())

	sel, err := f.SelectEntity(m.Entity("Cat"))
	require.NoError(t, err)

	b, ok := sel.Predicate().(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpEqual, b.Op)
	assert.Equal(t, "kind", b.Left.(*Column).Name)
	assert.Equal(t, "cat", b.Right.(*Constant).Value)
}

func TestSelectEntity_RootProjectionCoversDerivedProperties(t *testing.T) {
	m := animalModel(t)
	f := NewFactory(m.Mappings())

	sel, err := f.SelectEntity(m.Entity("Animal"))
	require.NoError(t, err)

	bound, err := sel.Mapping().Get(RootMember())
	require.NoError(t, err)
	ep := bound.(*EntityProjection)

	assert.NotNil(t, ep.BindProperty("Lives"))
	assert.NotNil(t, ep.BindProperty("BarkVolume"))
	assert.Equal(t, "lives", ep.BindProperty("Lives").Name)
}

func TestConstant_MappingInferredFromValueType(t *testing.T) {
	f, _ := personFactory(t)

	c := f.Constant("hello")
	require.NotNil(t, c.Mapping())
	assert.Equal(t, "TEXT", c.Mapping().StoreType)

	// Unregistered value types stay unmapped.
	type custom struct{}
	assert.Nil(t, f.Constant(custom{}).Mapping())

	assert.Nil(t, f.Constant(nil).ValueType())
}
