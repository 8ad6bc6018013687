package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/database"
	"github.com/driftmarket/driftmarket/pkg/mail"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}))
	return db
}

// fakeTransport records sent messages and can be told to fail or stall.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []*mail.Message
	err   error
	delay time.Duration
}

func (f *fakeTransport) Send(m *mail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func seedUnsentOrder(t *testing.T, repo *repositories.OrderRepository, slug string) models.Order {
	t.Helper()
	o := models.Order{
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
	require.NoError(t, repo.Create(&o))
	return o
}
