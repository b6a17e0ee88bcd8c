package translate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/sqlexpr"
)

func newTestFactory(t *testing.T) *sqlexpr.Factory {
	t.Helper()
	return sqlexpr.NewFactory(metadata.NewTypeMappingSource())
}

// stubTranslator matches a single method name and returns a fixed
// expression, recording whether it was consulted.
type stubTranslator struct {
	method string
	result sqlexpr.Expression
	err    error
	called int
}

func (s *stubTranslator) TranslateMethod(instance sqlexpr.Expression, method string, args []sqlexpr.Expression) (sqlexpr.Expression, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	if method != s.method {
		return nil, nil
	}
	return s.result, nil
}

func TestRegistry_PluginOverridesBuiltin(t *testing.T) {
	f := newTestFactory(t)
	want := f.Constant("plugin wins")
	plugin := &stubTranslator{method: "ToUpper", result: want}
	r := NewRegistry(f, plugin)

	instance := f.Constant("abc")
	got, err := r.Method(instance, "ToUpper", nil)
	require.NoError(t, err)
	assert.Same(t, sqlexpr.Expression(want), got)
	assert.Equal(t, 1, plugin.called)
}

func TestRegistry_DispatchFallsThroughToBuiltins(t *testing.T) {
	f := newTestFactory(t)
	plugin := &stubTranslator{method: "SomethingElse"}
	r := NewRegistry(f, plugin)

	instance := f.Constant("abc")
	got, err := r.Method(instance, "ToUpper", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	fn, ok := got.(*sqlexpr.Function)
	require.True(t, ok)
	assert.Equal(t, "UPPER", fn.Name)
	// The plugin was probed first.
	assert.Equal(t, 1, plugin.called)
}

func TestRegistry_NoMatchIsNilNil(t *testing.T) {
	f := newTestFactory(t)
	r := NewRegistry(f)

	got, err := r.Method(f.Constant(int64(1)), "ToUpper", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_TranslatorErrorAbortsDispatch(t *testing.T) {
	f := newTestFactory(t)
	boom := errors.New("boom")
	failing := &stubTranslator{err: boom}
	fallback := &stubTranslator{method: "ToUpper", result: f.Constant("never")}
	r := NewRegistry(f, failing, fallback)

	_, err := r.Method(f.Constant("abc"), "ToUpper", nil)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, fallback.called)
}

func TestRegistry_RequireMethodNoMatchIsUntranslatable(t *testing.T) {
	f := newTestFactory(t)
	r := NewRegistry(f)

	_, err := r.RequireMethod(f.Constant(int64(1)), "Frobnicate", nil)
	require.Error(t, err)
	var te *sqlexpr.TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, sqlexpr.ErrCodeUntranslatable, te.Code)
}

func TestRegistry_MemberDispatch(t *testing.T) {
	f := newTestFactory(t)
	r := NewRegistry(f)

	got, err := r.Member(f.Constant("abc"), "Length", reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	fn, ok := got.(*sqlexpr.Function)
	require.True(t, ok)
	assert.Equal(t, "LENGTH", fn.Name)

	got, err = r.Member(f.Constant(int64(1)), "Length", reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Nil(t, got)
}
