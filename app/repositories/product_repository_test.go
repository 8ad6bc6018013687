package repositories_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
)

func sampleProduct(slug string) models.Product {
	return models.Product{
		Slug:         slug,
		Title:        "Walnut writing desk",
		Price:        decimal.NewFromInt(4200),
		Currency:     "INR",
		Brand:        "Herman",
		Images:       models.StringList{"https://cdn.example.com/" + slug + "/1.jpg"},
		CheckoutLink: "https://pay.example.com/" + slug,
		InStock:      true,
		ListedBy:     "Asha",
		Collections:  models.StringList{"furniture"},
	}
}

func TestProductRepository_CreateAndBySlug(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 6)

	p := sampleProduct("walnut-desk")
	require.NoError(t, repo.Create(&p))

	got, err := repo.BySlug("walnut-desk")
	require.NoError(t, err)
	assert.Equal(t, "Walnut writing desk", got.Title)
	assert.Equal(t, models.StringList{"furniture"}, got.Collections)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(4200)))

	_, err = repo.BySlug("nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductRepository_ListFilters(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 6)

	a := sampleProduct("desk-a")
	a.Collections = models.StringList{"furniture"}
	b := sampleProduct("lamp-b")
	b.Title = "Brass lamp"
	b.Collections = models.StringList{"lighting"}
	b.InStock = false
	require.NoError(t, repo.Create(&a))
	require.NoError(t, repo.Create(&b))

	got, total, err := repo.List(repositories.ProductFilter{Collection: "furniture"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "desk-a", got[0].Slug)

	got, _, err = repo.List(repositories.ProductFilter{Query: "brass"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lamp-b", got[0].Slug)

	inStock := true
	got, _, err = repo.List(repositories.ProductFilter{InStock: &inStock})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "desk-a", got[0].Slug)
}

func TestProductRepository_FeaturedCap(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 2)

	for i := 0; i < 3; i++ {
		p := sampleProduct(fmt.Sprintf("item-%d", i))
		require.NoError(t, repo.Create(&p))
	}

	require.NoError(t, repo.SetFeatured("item-0", true))
	require.NoError(t, repo.SetFeatured("item-1", true))

	err := repo.SetFeatured("item-2", true)
	assert.ErrorIs(t, err, repositories.ErrFeaturedLimit)

	count, err := repo.FeaturedCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// Featuring an already-featured product stays within the cap.
	require.NoError(t, repo.SetFeatured("item-0", true))

	// Unfeaturing frees a slot.
	require.NoError(t, repo.SetFeatured("item-0", false))
	require.NoError(t, repo.SetFeatured("item-2", true))
}

func TestProductRepository_UpsertBySlug(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 6)

	p := sampleProduct("walnut-desk")
	require.NoError(t, repo.Create(&p))

	updated := sampleProduct("walnut-desk")
	updated.Title = "Restored walnut desk"
	updated.Price = decimal.NewFromInt(4800)
	require.NoError(t, repo.UpsertBySlug(&updated))

	got, err := repo.BySlug("walnut-desk")
	require.NoError(t, err)
	assert.Equal(t, "Restored walnut desk", got.Title)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(4800)))

	var count int64
	require.NoError(t, testCount(repo, &count))
	assert.EqualValues(t, 1, count)
}

// testCount counts product rows through the repository's list.
func testCount(repo *repositories.ProductRepository, out *int64) error {
	_, total, err := repo.List(repositories.ProductFilter{})
	*out = total
	return err
}

func TestProductRepository_Delete(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 6)

	p := sampleProduct("walnut-desk")
	require.NoError(t, repo.Create(&p))
	require.NoError(t, repo.Delete("walnut-desk"))

	_, err := repo.BySlug("walnut-desk")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repo.Delete("walnut-desk"), gorm.ErrRecordNotFound)
}

func TestProductRepository_FeaturedCapConcurrent(t *testing.T) {
	repo := repositories.NewProductRepository(testDB(t), 6)

	const attempts = 12
	for i := 0; i < attempts; i++ {
		p := sampleProduct(fmt.Sprintf("race-%d", i))
		require.NoError(t, repo.Create(&p))
	}

	var wg sync.WaitGroup
	var won atomic.Int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slug string) {
			defer wg.Done()
			if err := repo.SetFeatured(slug, true); err == nil {
				won.Add(1)
			}
		}(fmt.Sprintf("race-%d", i))
	}
	wg.Wait()

	count, err := repo.FeaturedCount()
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)
	assert.EqualValues(t, 6, won.Load())
}
