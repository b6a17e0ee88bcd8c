package shaping

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/metadata"
	"github.com/roach88/entq/internal/querytree"
	"github.com/roach88/entq/internal/sqlexpr"
	"github.com/roach88/entq/internal/store"
	"github.com/roach88/entq/internal/testutil"
)

func compileCustomerQuery(t *testing.T) *CompiledQuery {
	t.Helper()
	m := testutil.CustomerModel(t)
	f := sqlexpr.NewFactory(m.Mappings())
	b, err := querytree.FromEntity(f, m.Entity("Customer"))
	require.NoError(t, err)

	cq, err := NewCompiler(m).Compile(b.Shaped())
	require.NoError(t, err)
	return cq
}

func TestCompile_FreezesAndFinalizes(t *testing.T) {
	cq := compileCustomerQuery(t)

	assert.Equal(t, "customers", cq.Container)
	assert.True(t, cq.Select.IsFrozen())
	assert.NotEmpty(t, cq.Select.Projections())
	assert.Equal(t, querytree.CardinalityEnumerable, cq.Cardinality)
}

func TestShaper_MaterializesTypedEntity(t *testing.T) {
	cq := compileCustomerQuery(t)

	id := uuid.MustParse("b3a6f3b1-42dc-46d5-aa96-1c0f7f5a8d2e")
	rec := store.Document{
		"ID":      id.String(),
		"Name":    "Ada",
		"Age":     int64(36),
		"Email":   "ada@example.org",
		"Joined":  "2024-03-01T09:00:00Z",
		"Address": `{"street": "10 Downing St", "city": "London"}`,
	}

	out, err := cq.Shaper(rec)
	require.NoError(t, err)
	c, ok := out.(*testutil.Customer)
	require.True(t, ok)

	assert.Equal(t, id, c.ID)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, int64(36), c.Age)
	require.NotNil(t, c.Email)
	assert.Equal(t, "ada@example.org", *c.Email)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), c.Joined.UTC())

	// The owned entity decodes from its document region by store
	// field names.
	require.NotNil(t, c.Address)
	assert.Equal(t, "10 Downing St", c.Address.Street)
	assert.Equal(t, "London", c.Address.City)
}

func TestShaper_NullFieldsMaterializeDefaults(t *testing.T) {
	cq := compileCustomerQuery(t)

	rec := store.Document{
		"ID":      uuid.NewString(),
		"Name":    "Grace",
		"Age":     int64(45),
		"Email":   nil,
		"Joined":  "2024-01-01T00:00:00Z",
		"Address": nil,
	}

	out, err := cq.Shaper(rec)
	require.NoError(t, err)
	c := out.(*testutil.Customer)
	assert.Nil(t, c.Email)
	assert.Nil(t, c.Address)
}

func TestShaper_AbsentFieldsSameAsNull(t *testing.T) {
	cq := compileCustomerQuery(t)

	rec := store.Document{
		"ID":     uuid.NewString(),
		"Name":   "Linus",
		"Age":    int64(20),
		"Joined": "2024-01-01T00:00:00Z",
	}

	out, err := cq.Shaper(rec)
	require.NoError(t, err)
	c := out.(*testutil.Customer)
	assert.Nil(t, c.Email)
	assert.Nil(t, c.Address)
}

func TestShaper_WidenedIntegersConvert(t *testing.T) {
	cq := compileCustomerQuery(t)

	// Values read back through JSON regions arrive as float64.
	rec := store.Document{
		"ID":     uuid.NewString(),
		"Name":   "Yoko",
		"Age":    float64(29),
		"Joined": "2024-01-01T00:00:00Z",
	}

	out, err := cq.Shaper(rec)
	require.NoError(t, err)
	assert.Equal(t, int64(29), out.(*testutil.Customer).Age)
}

func TestShaper_ConversionErrorSurfaces(t *testing.T) {
	cq := compileCustomerQuery(t)

	rec := store.Document{
		"ID":     "not-a-uuid",
		"Name":   "x",
		"Age":    int64(1),
		"Joined": "2024-01-01T00:00:00Z",
	}

	_, err := cq.Shaper(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Customer.ID")
}

func compileAnimalQuery(t *testing.T) *CompiledQuery {
	t.Helper()
	m := testutil.AnimalModel(t)
	f := sqlexpr.NewFactory(m.Mappings())
	b, err := querytree.FromEntity(f, m.Entity("Animal"))
	require.NoError(t, err)

	cq, err := NewCompiler(m).Compile(b.Shaped())
	require.NoError(t, err)
	return cq
}

func TestShaper_DiscriminatorSelectsConcreteType(t *testing.T) {
	cq := compileAnimalQuery(t)
	id := uuid.MustParse("52b8a13d-7a9e-4e43-9f02-3d2f4b6c8e1a")

	out, err := cq.Shaper(store.Document{
		"ID":    id.String(),
		"Kind":  "cat",
		"Name":  "Mog",
		"Lives": int64(9),
	})
	require.NoError(t, err)
	cat, ok := out.(*testutil.Cat)
	require.True(t, ok)
	assert.Equal(t, id, cat.ID)
	assert.Equal(t, "Mog", cat.Name)
	assert.Equal(t, int64(9), cat.Lives)

	out, err = cq.Shaper(store.Document{
		"ID":         uuid.NewString(),
		"Kind":       "dog",
		"Name":       "Rex",
		"BarkVolume": int64(11),
	})
	require.NoError(t, err)
	dog, ok := out.(*testutil.Dog)
	require.True(t, ok)
	assert.Equal(t, int64(11), dog.BarkVolume)
}

func TestShaper_UnknownDiscriminatorFails(t *testing.T) {
	cq := compileAnimalQuery(t)

	_, err := cq.Shaper(store.Document{
		"ID":   uuid.NewString(),
		"Kind": "fish",
		"Name": "Nemo",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fish")
}

func TestCompile_ScalarBinding(t *testing.T) {
	m := testutil.CustomerModel(t)
	f := sqlexpr.NewFactory(m.Mappings())

	sel := sqlexpr.NewSelect("customers")
	member := sqlexpr.RootMember().Append("Total")
	sel.Mapping().Set(member, f.Constant(int64(0)))

	sq := &querytree.ShapedQuery{
		Select: sel,
		Shaper: querytree.BindMember(sel, member, reflect.TypeOf(int64(0))),
	}
	cq, err := NewCompiler(m).Compile(sq)
	require.NoError(t, err)

	out, err := cq.Shaper(store.Document{"Total": int64(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out)

	// Null scalar materializes nil without invoking the converter.
	out, err = cq.Shaper(store.Document{"Total": nil})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestCompile_CollectionShaperUnsupported(t *testing.T) {
	m := testutil.CustomerModel(t)
	sel := sqlexpr.NewSelect("customers")
	sq := &querytree.ShapedQuery{
		Select: sel,
		Shaper: &querytree.CollectionShaper{},
	}
	_, err := NewCompiler(m).Compile(sq)
	require.Error(t, err)
	assert.True(t, sqlexpr.IsUnsupported(err))
}

// dynamicModel declares an entity without a Go struct; its instances
// materialize as value buffers.
func dynamicModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewModelBuilder()
	b.Entity("Event", nil).
		Container("events").
		Property("ID", reflect.TypeOf(int64(0))).StoreName("id").Entity().
		Property("Name", reflect.TypeOf("")).StoreName("name").Entity()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestCompile_DynamicEntityBuildsValueBuffer(t *testing.T) {
	m := dynamicModel(t)
	f := sqlexpr.NewFactory(m.Mappings())
	b, err := querytree.FromEntity(f, m.Entity("Event"))
	require.NoError(t, err)

	cq, err := NewCompiler(m).Compile(b.Shaped())
	require.NoError(t, err)

	out, err := cq.Shaper(store.Document{
		"ID":   int64(1),
		"Name": "deploy",
	})
	require.NoError(t, err)
	buf, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), buf["ID"])
	assert.Equal(t, "deploy", buf["Name"])
}
