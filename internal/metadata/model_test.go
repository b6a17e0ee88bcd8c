package metadata

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vehicle struct {
	ID   int64
	Kind string
}

type car struct {
	vehicle
	Doors int64
}

type truck struct {
	vehicle
	Payload int64
}

type depot struct {
	Name string
	Site *site
}

type site struct {
	City string
}

func buildVehicleModel(t *testing.T) *Model {
	t.Helper()
	b := NewModelBuilder()
	b.Entity("vehicle", reflect.TypeOf(vehicle{})).
		Container("vehicles").
		Abstract().
		Discriminator("Kind").
		Property("ID", reflect.TypeOf(int64(0))).StoreName("id").Entity().
		Property("Kind", reflect.TypeOf("")).StoreName("kind").Entity()
	b.Entity("car", reflect.TypeOf(car{})).
		BaseType("vehicle").
		DiscriminatorValue("car").
		Property("Doors", reflect.TypeOf(int64(0))).StoreName("doors").Entity()
	b.Entity("truck", reflect.TypeOf(truck{})).
		BaseType("vehicle").
		DiscriminatorValue("truck").
		Property("Payload", reflect.TypeOf(int64(0))).StoreName("payload").Entity()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestEntityType_PropertiesIncludeInherited(t *testing.T) {
	m := buildVehicleModel(t)
	carType := m.Entity("car")
	require.NotNil(t, carType)

	var names []string
	for _, p := range carType.Properties() {
		names = append(names, p.Name)
	}
	// Base properties come first, declared ones after.
	assert.Equal(t, []string{"ID", "Kind", "Doors"}, names)
}

func TestEntityType_DerivedShareRootContainer(t *testing.T) {
	m := buildVehicleModel(t)
	assert.Equal(t, "vehicles", m.Entity("vehicle").Container)
	assert.Equal(t, "vehicles", m.Entity("car").Container)
	assert.Equal(t, "vehicles", m.Entity("truck").Container)
}

func TestEntityType_ConcreteDerivedTypes(t *testing.T) {
	m := buildVehicleModel(t)
	root := m.Entity("vehicle")

	var names []string
	for _, et := range root.ConcreteDerivedTypes() {
		names = append(names, et.Name)
	}
	assert.ElementsMatch(t, []string{"car", "truck"}, names)
}

func TestEntityType_ConcreteTypeFor(t *testing.T) {
	m := buildVehicleModel(t)
	root := m.Entity("vehicle")

	et, err := root.ConcreteTypeFor("car")
	require.NoError(t, err)
	assert.Equal(t, "car", et.Name)

	_, err = root.ConcreteTypeFor("bicycle")
	assert.Error(t, err)
}

func TestEntityType_ConcreteTypeForWidenedInteger(t *testing.T) {
	// Integer discriminators read back as float64 through JSON still
	// resolve.
	b := NewModelBuilder()
	b.Entity("shape", nil).
		Container("shapes").
		Abstract().
		Discriminator("Kind").
		Property("Kind", reflect.TypeOf(int64(0))).StoreName("kind").Entity()
	b.Entity("circle", nil).
		BaseType("shape").
		DiscriminatorValue(int64(1))
	m, err := b.Build()
	require.NoError(t, err)

	et, err := m.Entity("shape").ConcreteTypeFor(float64(1))
	require.NoError(t, err)
	assert.Equal(t, "circle", et.Name)
}

func TestEntityType_DiscriminatorPropertyInherited(t *testing.T) {
	m := buildVehicleModel(t)
	carType := m.Entity("car")

	disc := carType.DiscriminatorProperty()
	require.NotNil(t, disc)
	assert.Equal(t, "Kind", disc.Name)
	assert.Same(t, m.Entity("vehicle").DiscriminatorProperty(), disc)
}

func TestModelBuilder_ResolvesMappingsAndFieldIndexes(t *testing.T) {
	m := buildVehicleModel(t)
	idProp := m.Entity("vehicle").Property("ID")
	require.NotNil(t, idProp)
	require.NotNil(t, idProp.Mapping)
	assert.Equal(t, "INTEGER", idProp.Mapping.StoreType)
	assert.Equal(t, []int{0}, idProp.FieldIndex())
}

func TestModelBuilder_NavigationTargetResolution(t *testing.T) {
	b := NewModelBuilder()
	b.Entity("depot", reflect.TypeOf(depot{})).
		Container("depots").
		Property("Name", reflect.TypeOf("")).StoreName("name").Entity().
		Navigation("Site", "site").Owned().StoreName("site")
	b.Entity("site", reflect.TypeOf(site{})).
		Property("City", reflect.TypeOf("")).StoreName("city").Entity()
	m, err := b.Build()
	require.NoError(t, err)

	nav := m.Entity("depot").Navigation("Site")
	require.NotNil(t, nav)
	assert.True(t, nav.Owned)
	assert.Same(t, m.Entity("site"), nav.Target)
	assert.Equal(t, "site", nav.StoreName)
}

func TestModelBuilder_UnknownBaseType(t *testing.T) {
	b := NewModelBuilder()
	b.Entity("orphan", nil).BaseType("missing")
	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown base type")
}

func TestModelBuilder_UnknownNavigationTarget(t *testing.T) {
	b := NewModelBuilder()
	b.Entity("depot", nil).
		Container("depots").
		Navigation("Site", "missing").Owned()
	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestModelBuilder_StructFieldMismatch(t *testing.T) {
	b := NewModelBuilder()
	b.Entity("depot", reflect.TypeOf(depot{})).
		Container("depots").
		Property("Missing", reflect.TypeOf("")).StoreName("missing").Entity()
	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no field")
}
