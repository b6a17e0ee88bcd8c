package modeldef

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entq/internal/metadata"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_CleanModelPasses(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Blog", nil).
		Container("blogs").
		Property("Id", reflect.TypeOf(int64(0))).StoreName("id").Entity()
	m, err := b.Build()
	require.NoError(t, err)

	assert.Empty(t, Validate(m))
}

func TestValidate_DuplicateStoreName(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Blog", nil).
		Property("Id", reflect.TypeOf(int64(0))).StoreName("id").Entity().
		Property("Key", reflect.TypeOf("")).StoreName("id").Entity()
	m, err := b.Build()
	require.NoError(t, err)

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateStoreName, errs[0].Code)
	assert.Equal(t, "Blog", errs[0].Entity)
	assert.Equal(t, "Key", errs[0].Field)
}

func TestValidate_MissingDiscriminator(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Post", nil).Abstract()
	b.Entity("Article", nil).BaseType("Post").DiscriminatorValue("article")
	m, err := b.Build()
	require.NoError(t, err)

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingDiscriminator, errs[0].Code)
	assert.Equal(t, "Post", errs[0].Entity)
}

func TestValidate_MissingDiscriminatorValue(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Post", nil).
		Abstract().
		Discriminator("Kind").
		Property("Kind", reflect.TypeOf("")).Entity()
	b.Entity("Article", nil).BaseType("Post")
	m, err := b.Build()
	require.NoError(t, err)

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingDiscValue, errs[0].Code)
	assert.Equal(t, "Article", errs[0].Entity)
}

func TestValidate_DuplicateDiscriminatorValue(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Post", nil).
		Abstract().
		Discriminator("Kind").
		Property("Kind", reflect.TypeOf("")).Entity()
	b.Entity("Article", nil).BaseType("Post").DiscriminatorValue("post")
	b.Entity("Video", nil).BaseType("Post").DiscriminatorValue("post")
	m, err := b.Build()
	require.NoError(t, err)

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateDiscValue, errs[0].Code)
}

func TestValidate_ConcreteRootCountsAsMember(t *testing.T) {
	// A non-abstract root participates in the hierarchy and needs its
	// own discriminator value.
	b := metadata.NewModelBuilder()
	b.Entity("Post", nil).
		Discriminator("Kind").
		Property("Kind", reflect.TypeOf("")).Entity()
	b.Entity("Article", nil).BaseType("Post").DiscriminatorValue("article")
	m, err := b.Build()
	require.NoError(t, err)

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingDiscValue, errs[0].Code)
	assert.Equal(t, "Post", errs[0].Entity)
}

func TestValidate_OwnedCollection(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Blog", nil).
		Navigation("Posts", "Post").Owned().Collection()
	b.Entity("Post", nil)
	m, err := b.Build()
	require.NoError(t, err)

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrOwnedCollection, errs[0].Code)
	assert.Equal(t, "Posts", errs[0].Field)
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	b := metadata.NewModelBuilder()
	b.Entity("Post", nil).
		Abstract().
		Property("A", reflect.TypeOf("")).StoreName("x").Entity().
		Property("B", reflect.TypeOf("")).StoreName("x").Entity()
	b.Entity("Article", nil).BaseType("Post")
	m, err := b.Build()
	require.NoError(t, err)

	got := codes(Validate(m))
	assert.Contains(t, got, ErrDuplicateStoreName)
	assert.Contains(t, got, ErrMissingDiscriminator)
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Code: "M101", Entity: "Blog", Field: "Key", Message: "boom"}
	assert.Equal(t, "[M101] Blog.Key: boom", e.Error())

	e = ValidationError{Code: "M102", Entity: "Post", Message: "boom"}
	assert.Equal(t, "[M102] Post: boom", e.Error())
}
