package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/sqlexpr"
)

func TestStringTranslator_ContainsLiteralLowersToLike(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)

	got, err := tr.TranslateMethod(f.Constant("haystack"), "Contains", []sqlexpr.Expression{f.Constant("needle")})
	require.NoError(t, err)
	like, ok := got.(*sqlexpr.Like)
	require.True(t, ok)
	assert.Equal(t, "%needle%", like.Pattern.(*sqlexpr.Constant).Value)
	require.NotNil(t, like.Escape)
	assert.Equal(t, `\`, like.Escape.(*sqlexpr.Constant).Value)
}

func TestStringTranslator_WildcardsInLiteralAreEscaped(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)

	got, err := tr.TranslateMethod(f.Constant("s"), "StartsWith", []sqlexpr.Expression{f.Constant(`50%_off\`)})
	require.NoError(t, err)
	like := got.(*sqlexpr.Like)
	assert.Equal(t, `50\%\_off\\%`, like.Pattern.(*sqlexpr.Constant).Value)
}

func TestStringTranslator_EndsWithLiteral(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)

	got, err := tr.TranslateMethod(f.Constant("s"), "EndsWith", []sqlexpr.Expression{f.Constant("tail")})
	require.NoError(t, err)
	like := got.(*sqlexpr.Like)
	assert.Equal(t, "%tail", like.Pattern.(*sqlexpr.Constant).Value)
}

func TestStringTranslator_NonLiteralStartsWithUsesInstr(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)
	fragment := f.Parameter("frag", stringType)

	got, err := tr.TranslateMethod(f.Constant("s"), "StartsWith", []sqlexpr.Expression{fragment})
	require.NoError(t, err)
	cmp, ok := got.(*sqlexpr.Binary)
	require.True(t, ok)
	assert.Equal(t, sqlexpr.OpEqual, cmp.Op)
	fn := cmp.Left.(*sqlexpr.Function)
	assert.Equal(t, "INSTR", fn.Name)
	assert.Equal(t, int64(1), cmp.Right.(*sqlexpr.Constant).Value)
}

func TestStringTranslator_NonLiteralEndsWithComparesTail(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)
	fragment := f.Parameter("frag", stringType)

	got, err := tr.TranslateMethod(f.Constant("s"), "EndsWith", []sqlexpr.Expression{fragment})
	require.NoError(t, err)
	cmp := got.(*sqlexpr.Binary)
	assert.Equal(t, sqlexpr.OpEqual, cmp.Op)
	substr := cmp.Left.(*sqlexpr.Function)
	assert.Equal(t, "SUBSTR", substr.Name)
}

func TestStringTranslator_NonLiteralContainsUsesInstr(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)
	fragment := f.Parameter("frag", stringType)

	got, err := tr.TranslateMethod(f.Constant("s"), "Contains", []sqlexpr.Expression{fragment})
	require.NoError(t, err)
	cmp := got.(*sqlexpr.Binary)
	assert.Equal(t, sqlexpr.OpGreaterThan, cmp.Op)
	assert.Equal(t, "INSTR", cmp.Left.(*sqlexpr.Function).Name)
}

func TestStringTranslator_CaseAndTrimFunctions(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)
	instance := f.Constant("abc")

	for method, fn := range map[string]string{
		"ToUpper": "UPPER",
		"ToLower": "LOWER",
		"Trim":    "TRIM",
	} {
		got, err := tr.TranslateMethod(instance, method, nil)
		require.NoError(t, err)
		require.NotNil(t, got, method)
		assert.Equal(t, fn, got.(*sqlexpr.Function).Name)
	}
}

func TestStringTranslator_NonStringInstanceNoMatch(t *testing.T) {
	f := newTestFactory(t)
	tr := newStringTranslator(f)

	got, err := tr.TranslateMethod(f.Constant(int64(1)), "Contains", []sqlexpr.Expression{f.Constant("x")})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = tr.TranslateMethod(nil, "Contains", []sqlexpr.Expression{f.Constant("x")})
	require.NoError(t, err)
	assert.Nil(t, got)
}
