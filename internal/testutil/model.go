package testutil

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/metadata"
)

// Customer is the standalone fixture entity: no hierarchy, one owned
// reference stored inside the customer document.
type Customer struct {
	ID      uuid.UUID
	Name    string
	Age     int64
	Email   *string
	Joined  time.Time
	Address *Address
}

// Address is owned by Customer.
type Address struct {
	Street string
	City   string
}

// Animal is the fixture hierarchy root.
type Animal struct {
	ID   uuid.UUID
	Kind string
	Name string
}

// Cat and Dog are the concrete hierarchy members.
type Cat struct {
	Animal
	Lives int64
}

type Dog struct {
	Animal
	BarkVolume int64
}

// CustomerModel builds the standalone-entity fixture model.
func CustomerModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewModelBuilder()
	b.Entity("Customer", reflect.TypeOf(Customer{})).
		Container("customers").
		Property("ID", reflect.TypeOf(uuid.UUID{})).StoreName("id").Entity().
		Property("Name", reflect.TypeOf("")).StoreName("name").Entity().
		Property("Age", reflect.TypeOf(int64(0))).StoreName("age").Entity().
		Property("Email", reflect.TypeOf("")).StoreName("email").Nullable().Entity().
		Property("Joined", reflect.TypeOf(time.Time{})).StoreName("joined").Entity().
		Navigation("Address", "Address").Owned().StoreName("address")
	b.Entity("Address", reflect.TypeOf(Address{})).
		Property("Street", reflect.TypeOf("")).StoreName("street").Entity().
		Property("City", reflect.TypeOf("")).StoreName("city").Entity().
		Navigation("Customer", "Customer").Owned().OnDependent()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// AnimalModel builds the hierarchy fixture model: abstract Animal with
// concrete Cat and Dog sharing one container, discriminated by Kind.
func AnimalModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewModelBuilder()
	b.Entity("Animal", reflect.TypeOf(Animal{})).
		Container("animals").
		Abstract().
		Discriminator("Kind").
		Property("ID", reflect.TypeOf(uuid.UUID{})).StoreName("id").Entity().
		Property("Kind", reflect.TypeOf("")).StoreName("kind").Entity().
		Property("Name", reflect.TypeOf("")).StoreName("name").Entity()
	b.Entity("Cat", reflect.TypeOf(Cat{})).
		BaseType("Animal").
		DiscriminatorValue("cat").
		Property("Lives", reflect.TypeOf(int64(0))).StoreName("lives").Entity()
	b.Entity("Dog", reflect.TypeOf(Dog{})).
		BaseType("Animal").
		DiscriminatorValue("dog").
		Property("BarkVolume", reflect.TypeOf(int64(0))).StoreName("bark_volume").Entity()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}
