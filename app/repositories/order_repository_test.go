package repositories_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
)

func sampleOrder(slug string) models.Order {
	return models.Order{
		ProductSlug:   slug,
		ProductTitle:  "Walnut writing desk",
		Price:         decimal.NewFromInt(4200),
		Currency:      "INR",
		CustomerName:  "Priya Nair",
		CustomerEmail: "priya@example.com",
		AddressLine1:  "14 Lake View Road",
		City:          "Kochi",
		PostalCode:    "682001",
		Country:       "India",
	}
}

func TestOrderRepository_CreateAssignsPublicID(t *testing.T) {
	repo := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)

	o := sampleOrder("walnut-desk")
	require.NoError(t, repo.Create(&o))
	require.NotEmpty(t, o.PublicID)

	got, err := repo.ByPublicID(o.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "walnut-desk", got.ProductSlug)
	assert.False(t, got.EmailSent)
	assert.Zero(t, got.EmailRetryCount)
}

func TestOrderRepository_ListNeedingRetry(t *testing.T) {
	db := testDB(t)
	repo := repositories.NewOrderRepository(db, models.MaxEmailRetries)

	// Oldest unsent order, eligible.
	oldest := sampleOrder("item-oldest")
	require.NoError(t, repo.Create(&oldest))
	// Newer unsent order, eligible.
	newer := sampleOrder("item-newer")
	require.NoError(t, repo.Create(&newer))
	// Already sent.
	sent := sampleOrder("item-sent")
	require.NoError(t, repo.Create(&sent))
	require.NoError(t, repo.MarkEmailSent(sent.PublicID))
	// At the retry cap.
	capped := sampleOrder("item-capped")
	require.NoError(t, repo.Create(&capped))
	// Backoff window still open.
	waiting := sampleOrder("item-waiting")
	require.NoError(t, repo.Create(&waiting))

	now := time.Now()
	require.NoError(t, db.Model(&models.Order{}).
		Where("public_id = ?", oldest.PublicID).
		Update("created_at", now.Add(-2*time.Hour)).Error)
	require.NoError(t, db.Model(&models.Order{}).
		Where("public_id = ?", newer.PublicID).
		Update("created_at", now.Add(-1*time.Hour)).Error)
	require.NoError(t, db.Model(&models.Order{}).
		Where("public_id = ?", capped.PublicID).
		Update("email_retry_count", models.MaxEmailRetries).Error)
	require.NoError(t, db.Model(&models.Order{}).
		Where("public_id = ?", waiting.PublicID).
		Update("next_retry_at", now.Add(time.Hour)).Error)

	got, err := repo.ListNeedingRetry(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, oldest.PublicID, got[0].PublicID, "oldest order first")
	assert.Equal(t, newer.PublicID, got[1].PublicID)

	// max caps the result.
	got, err = repo.ListNeedingRetry(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, oldest.PublicID, got[0].PublicID)

	// max <= 0 returns nothing.
	got, err = repo.ListNeedingRetry(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOrderRepository_MarkEmailFailedBackoffAndCap(t *testing.T) {
	repo := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)

	o := sampleOrder("walnut-desk")
	require.NoError(t, repo.Create(&o))

	require.NoError(t, repo.MarkEmailFailed(o.PublicID, errors.New("smtp timeout")))
	got, err := repo.ByPublicID(o.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EmailRetryCount)
	assert.Equal(t, "smtp timeout", got.EmailError)
	require.NotNil(t, got.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *got.NextRetryAt, time.Minute)

	// Failures past the cap never push the counter above it.
	for i := 0; i < 10; i++ {
		require.NoError(t, repo.MarkEmailFailed(o.PublicID, errors.New("still down")))
	}
	got, err = repo.ByPublicID(o.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxEmailRetries, got.EmailRetryCount)
}

func TestOrderRepository_MarkEmailSentClearsError(t *testing.T) {
	repo := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)

	o := sampleOrder("walnut-desk")
	require.NoError(t, repo.Create(&o))
	require.NoError(t, repo.MarkEmailFailed(o.PublicID, errors.New("smtp timeout")))
	require.NoError(t, repo.MarkEmailSent(o.PublicID))

	got, err := repo.ByPublicID(o.PublicID)
	require.NoError(t, err)
	assert.True(t, got.EmailSent)
	assert.Empty(t, got.EmailError)
	assert.Nil(t, got.NextRetryAt)
}

func TestOrderRepository_ConvertedFilterAndDelete(t *testing.T) {
	repo := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)

	a := sampleOrder("item-a")
	b := sampleOrder("item-b")
	require.NoError(t, repo.Create(&a))
	require.NoError(t, repo.Create(&b))
	require.NoError(t, repo.MarkConverted(a.PublicID))

	converted := true
	got, total, err := repo.List(repositories.OrderFilter{Converted: &converted})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, a.PublicID, got[0].PublicID)

	require.NoError(t, repo.Delete(b.PublicID))
	_, err = repo.ByPublicID(b.PublicID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repo.MarkConverted("missing"), gorm.ErrRecordNotFound)
}

func TestOrderRepository_ConfigurableRetryCap(t *testing.T) {
	db := testDB(t)
	repo := repositories.NewOrderRepository(db, 2)

	o := sampleOrder("walnut-desk")
	require.NoError(t, repo.Create(&o))

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.MarkEmailFailed(o.PublicID, errors.New("smtp timeout")))
	}
	got, err := repo.ByPublicID(o.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EmailRetryCount)

	// At the cap the order leaves the retry set even once its backoff
	// window has elapsed.
	require.NoError(t, db.Model(&models.Order{}).
		Where("public_id = ?", o.PublicID).
		Update("next_retry_at", nil).Error)
	pending, err := repo.ListNeedingRetry(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
