package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/cache"
)

var testAllowList = []string{"Asha", "Dev"}

func newProductService(t *testing.T) (*services.ProductService, *repositories.ProductRepository) {
	t.Helper()
	repo := repositories.NewProductRepository(testDB(t), 6)
	svc := services.NewProductService(repo, (*cache.Client)(nil), testAllowList)
	return svc, repo
}

func productInput(slug string) services.ProductInput {
	return services.ProductInput{
		Slug:         slug,
		Title:        "Walnut writing desk",
		Price:        decimal.NewFromInt(4200),
		Images:       []string{"https://cdn.example.com/" + slug + "/1.jpg"},
		CheckoutLink: "https://pay.example.com/" + slug,
		ListedBy:     "Asha",
		Collections:  []string{"furniture"},
	}
}

func TestProductService_Create(t *testing.T) {
	svc, repo := newProductService(t)

	p, err := svc.Create(context.Background(), productInput("walnut-desk"))
	require.NoError(t, err)
	assert.Equal(t, "INR", p.Currency)
	assert.True(t, p.InStock, "in_stock defaults to true")

	got, err := repo.BySlug("walnut-desk")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.ListedBy)
}

func TestProductService_CreateRejectsUnknownSeller(t *testing.T) {
	svc, _ := newProductService(t)

	in := productInput("walnut-desk")
	in.ListedBy = "Mallory"
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, services.ErrListedByUnknown)
}

func TestProductService_CreateRejectsDuplicateSlug(t *testing.T) {
	svc, _ := newProductService(t)

	_, err := svc.Create(context.Background(), productInput("walnut-desk"))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), productInput("walnut-desk"))
	assert.ErrorIs(t, err, services.ErrSlugTaken)
}

func TestProductService_PatchStripsEmptyRequiredStrings(t *testing.T) {
	svc, _ := newProductService(t)

	_, err := svc.Create(context.Background(), productInput("walnut-desk"))
	require.NoError(t, err)

	p, err := svc.Patch(context.Background(), "walnut-desk", map[string]any{
		"title":       "",                 // required: stripped
		"description": "Solid walnut, restored this spring.",
		"brand":       "",                 // optional: written
	})
	require.NoError(t, err)
	assert.Equal(t, "Walnut writing desk", p.Title, "empty title must not overwrite")
	assert.Equal(t, "Solid walnut, restored this spring.", p.Description)
	assert.Empty(t, p.Brand)
}

func TestProductService_PatchIgnoresUnknownAndProtectedFields(t *testing.T) {
	svc, _ := newProductService(t)

	_, err := svc.Create(context.Background(), productInput("walnut-desk"))
	require.NoError(t, err)

	p, err := svc.Patch(context.Background(), "walnut-desk", map[string]any{
		"slug":        "hijacked",
		"is_featured": true,
		"bogus":       "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "walnut-desk", p.Slug)
	assert.False(t, p.IsFeatured, "featuring only via the capped endpoints")
}

func TestProductService_PatchUnknownSlug(t *testing.T) {
	svc, _ := newProductService(t)

	_, err := svc.Patch(context.Background(), "missing", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductService_FeatureCapSurfaced(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 1)
	svc := services.NewProductService(repo, (*cache.Client)(nil), testAllowList)

	for _, slug := range []string{"item-a", "item-b"} {
		_, err := svc.Create(context.Background(), productInput(slug))
		require.NoError(t, err)
	}

	require.NoError(t, svc.Feature(context.Background(), "item-a"))
	assert.ErrorIs(t, svc.Feature(context.Background(), "item-b"), repositories.ErrFeaturedLimit)

	require.NoError(t, svc.Unfeature(context.Background(), "item-a"))
	assert.NoError(t, svc.Feature(context.Background(), "item-b"))
}
