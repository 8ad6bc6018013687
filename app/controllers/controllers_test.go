package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/controllers"
	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/routes"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/config"
	"github.com/driftmarket/driftmarket/pkg/cache"
	"github.com/driftmarket/driftmarket/pkg/database"
	"github.com/driftmarket/driftmarket/pkg/mail"
	"github.com/driftmarket/driftmarket/pkg/router"
	"github.com/driftmarket/driftmarket/pkg/storage"
	"github.com/driftmarket/driftmarket/pkg/workerpool"
)

const testCronSecret = "cron-secret-for-tests"

// fakeTransport records sent messages; err makes every send fail.
type fakeTransport struct {
	mu   sync.Mutex
	sent []*mail.Message
	err  error
}

func (f *fakeTransport) Send(m *mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type testApp struct {
	handler  http.Handler
	db       *gorm.DB
	products *repositories.ProductRepository
	orders   *repositories.OrderRepository
}

// newTestApp assembles the API over sqlite with fakes for mail and
// storage, admin auth bypassed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	config.Set("AUTH_BYPASS", "true")
	config.Set("APP_ENV", "testing")
	config.Set("CRON_SECRET", testCronSecret)

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}))

	productRepo := repositories.NewProductRepository(db, 6)
	orderRepo := repositories.NewOrderRepository(db, models.MaxEmailRetries)

	pool := workerpool.New(4)
	t.Cleanup(pool.Shutdown)

	transport := &fakeTransport{}
	mailer := services.NewOrderMailer(transport, orderRepo)
	checkout := services.NewCheckoutService(orderRepo, mailer, 5*time.Second)
	sweep := services.NewSweepService(orderRepo, mailer, cache.NewMutexLocker(), pool, 10, 0)
	productSvc := services.NewProductService(productRepo, (*cache.Client)(nil), []string{"Asha", "Dev"})
	exporter := services.NewExportService(productRepo)
	importer := services.NewImportService(productRepo, storage.NewLocalDisk(t.TempDir(), "https://cdn.test"))

	r := router.New()
	routes.RegisterAPI(r, routes.Controllers{
		Storefront: controllers.NewStorefrontController(productRepo, productSvc),
		Checkout:   controllers.NewCheckoutController(checkout),
		AdminAuth:  controllers.NewAdminAuthController(),
		Products:   controllers.NewAdminProductController(productRepo, productSvc, exporter, importer),
		Orders:     controllers.NewAdminOrderController(orderRepo, sweep),
		Cron:       controllers.NewCronController(sweep),
	})

	return &testApp{handler: r.Handler(), db: db, products: productRepo, orders: orderRepo}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func seedProduct(t *testing.T, a *testApp, slug string) models.Product {
	t.Helper()
	p := models.Product{
		Slug:         slug,
		Title:        "Walnut writing desk",
		Price:        decimal.NewFromInt(4200),
		Currency:     "INR",
		Images:       models.StringList{"https://cdn.example.com/" + slug + "/1.jpg"},
		CheckoutLink: "https://pay.example.com/" + slug,
		InStock:      true,
		ListedBy:     "Asha",
		Collections:  models.StringList{"furniture"},
	}
	require.NoError(t, a.products.Create(&p))
	return p
}
