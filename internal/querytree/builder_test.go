package querytree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/sqlexpr"
)

func newOrderBuilder(t *testing.T) *Builder {
	t.Helper()
	m := orderModel(t)
	f := sqlexpr.NewFactory(m.Mappings())
	b, err := FromEntity(f, m.Entity("Order"))
	require.NoError(t, err)
	return b
}

func TestFromEntity_SeedsEntityShaper(t *testing.T) {
	b := newOrderBuilder(t)

	sq := b.Shaped()
	assert.Equal(t, "orders", sq.Select.Container())
	assert.Equal(t, CardinalityEnumerable, sq.Cardinality)

	es, ok := sq.Shaper.(*EntityShaper)
	require.True(t, ok)
	assert.Equal(t, "Order", es.EntityType.Name)
	assert.False(t, es.Nullable)
	assert.True(t, es.Binding.Member.Equal(sqlexpr.RootMember()))
}

func TestBuilder_Property(t *testing.T) {
	b := newOrderBuilder(t)

	expr, err := b.Property("ID")
	require.NoError(t, err)
	col, ok := expr.(*sqlexpr.Column)
	require.True(t, ok)
	assert.Equal(t, "id", col.Name)

	_, err = b.Property("Nope")
	require.Error(t, err)
	assert.True(t, sqlexpr.IsMissingProjection(err))
}

func TestBuilder_OperatorsComposeOntoSelect(t *testing.T) {
	b := newOrderBuilder(t)
	id, err := b.Property("ID")
	require.NoError(t, err)

	require.NoError(t, b.Where(b.Factory().GreaterThan(id, b.Factory().Constant(int64(10)))))
	require.NoError(t, b.OrderBy(id))
	require.NoError(t, b.Skip(5))
	require.NoError(t, b.Take(3))

	sel := b.Select()
	assert.NotNil(t, sel.Predicate())
	require.Len(t, sel.Orderings(), 1)
	assert.True(t, sel.Orderings()[0].Ascending)
	assert.NotNil(t, sel.Offset())
	assert.NotNil(t, sel.Limit())
}

func TestBuilder_ThenByAppends(t *testing.T) {
	b := newOrderBuilder(t)
	id, err := b.Property("ID")
	require.NoError(t, err)

	require.NoError(t, b.OrderByDescending(id))
	// ThenBy over the same column is structurally deduped.
	require.NoError(t, b.ThenBy(id))
	assert.Len(t, b.Select().Orderings(), 1)
}

func TestBuilder_ReverseAfterTakeFails(t *testing.T) {
	b := newOrderBuilder(t)
	id, err := b.Property("ID")
	require.NoError(t, err)

	require.NoError(t, b.OrderBy(id))
	require.NoError(t, b.Take(3))
	err = b.Reverse()
	require.Error(t, err)
	assert.True(t, sqlexpr.IsUsageError(err))
}

func TestBuilder_Cardinality(t *testing.T) {
	b := newOrderBuilder(t)
	b.Single()
	assert.Equal(t, CardinalitySingle, b.Shaped().Cardinality)

	b.SingleOrDefault()
	assert.Equal(t, CardinalitySingleOrDefault, b.Shaped().Cardinality)
}

func TestEntityShaper_WithChildrenCopies(t *testing.T) {
	b := newOrderBuilder(t)
	es := b.Shaped().Shaper.(*EntityShaper)

	child := &EntityShaper{EntityType: es.EntityType}
	out := es.WithChildren([]*EntityShaper{child})

	require.NotSame(t, es, out)
	assert.Nil(t, es.Children)
	require.Len(t, out.Children, 1)
	assert.Same(t, child, out.Children[0])
}
