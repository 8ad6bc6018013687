package controllers_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutBody() map[string]any {
	return map[string]any{
		"shipping_data": map[string]any{
			"name":          "Priya Nair",
			"email":         "priya@example.com",
			"address_line1": "14 Lake View Road",
			"city":          "Kochi",
			"postal_code":   "682001",
			"country":       "India",
		},
		"product": map[string]any{
			"slug":  "walnut-desk",
			"title": "Walnut writing desk",
			"price": "4200",
		},
	}
}

func TestCheckout_ReturnsOrderID(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/checkout", checkoutBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	require.NotEmpty(t, data["orderId"])
	assert.Equal(t, true, data["emailSent"])

	// The legacy alias hits the same handler.
	rec = app.do(t, http.MethodPost, "/api/send-shipping-email", checkoutBody())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckout_ValidationErrors(t *testing.T) {
	app := newTestApp(t)

	body := checkoutBody()
	body["shipping_data"].(map[string]any)["email"] = "not-an-email"
	delete(body["shipping_data"].(map[string]any), "city")

	rec := app.do(t, http.MethodPost, "/api/checkout", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email")
	assert.Contains(t, rec.Body.String(), "city")
}

func TestStorefront_ListAndShow(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app, "walnut-desk")

	rec := app.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "walnut-desk")

	rec = app.do(t, http.MethodGet, "/api/products/walnut-desk", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	app := newTestApp(t)

	create := map[string]any{
		"slug":          "brass-lamp",
		"title":         "Brass lamp",
		"price":         "950",
		"checkout_link": "https://pay.example.com/brass-lamp",
		"listed_by":     "Dev",
		"collections":   []string{"lighting"},
	}
	rec := app.do(t, http.MethodPost, "/api/admin/products", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate slug rejected.
	rec = app.do(t, http.MethodPost, "/api/admin/products", create)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown seller rejected.
	bad := map[string]any{}
	for k, v := range create {
		bad[k] = v
	}
	bad["slug"] = "other"
	bad["listed_by"] = "Mallory"
	rec = app.do(t, http.MethodPost, "/api/admin/products", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Patch strips empty required strings.
	rec = app.do(t, http.MethodPatch, "/api/admin/products/brass-lamp", map[string]any{
		"title":       "",
		"description": "Rewired and polished.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	p, err := app.products.BySlug("brass-lamp")
	require.NoError(t, err)
	assert.Equal(t, "Brass lamp", p.Title)
	assert.Equal(t, "Rewired and polished.", p.Description)

	rec = app.do(t, http.MethodDelete, "/api/admin/products/brass-lamp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/admin/products/brass-lamp", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_FeatureCapConflict(t *testing.T) {
	app := newTestApp(t)
	for _, slug := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		seedProduct(t, app, "item-"+slug)
	}

	for _, slug := range []string{"a", "b", "c", "d", "e", "f"} {
		rec := app.do(t, http.MethodPost, "/api/admin/products/item-"+slug+"/feature", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := app.do(t, http.MethodPost, "/api/admin/products/item-g/feature", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/admin/products/item-a/unfeature", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/admin/products/item-g/feature", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_RetryEmailsZeroIsNoop(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/admin/orders/retry-emails", map[string]any{"maxOrders": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 0, data["processed"])
}

func TestAdmin_OrdersListAndConvert(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/checkout", checkoutBody())
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decodeData(t, rec)["orderId"].(string)

	rec = app.do(t, http.MethodGet, "/api/admin/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), orderID)

	rec = app.do(t, http.MethodPost, "/api/admin/orders/"+orderID+"/mark-converted", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/admin/orders?converted=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), orderID)

	rec = app.do(t, http.MethodGet, "/api/admin/orders/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), orderID)

	rec = app.do(t, http.MethodDelete, "/api/admin/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/admin/orders/"+orderID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCron_RequiresSecret(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/cron/retry-failed-emails", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cron/retry-failed-emails", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cron/retry-failed-emails", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdmin_BulkExportValidation(t *testing.T) {
	app := newTestApp(t)
	seedProduct(t, app, "walnut-desk")

	rec := app.do(t, http.MethodPost, "/api/admin/products/bulk-export", map[string]any{"slugs": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/admin/products/bulk-export", map[string]any{"slugs": []string{"missing"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_ImportReportsPerFolderOutcomes(t *testing.T) {
	app := newTestApp(t)

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	mf, err := zw.Create("walnut-desk/product.json")
	require.NoError(t, err)
	_, err = mf.Write([]byte(`{
  "slug": "walnut-desk",
  "title": "Walnut writing desk",
  "price": "4200",
  "currency": "INR",
  "images": ["https://cdn.example.com/walnut-desk/1.jpg"],
  "checkout_link": "https://pay.example.com/walnut-desk",
  "in_stock": true,
  "listed_by": "Asha",
  "collections": ["furniture"]
}`))
	require.NoError(t, err)
	junk, err := zw.Create("broken/notes.txt")
	require.NoError(t, err)
	_, err = junk.Write([]byte("no manifest here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("archive", "products.zip")
	require.NoError(t, err)
	_, err = part.Write(archive.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data   map[string]int    `json:"data"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data["imported"])
	assert.Equal(t, 1, envelope.Data["skipped"])
	assert.Equal(t, 0, envelope.Data["failed"])
	assert.Contains(t, envelope.Errors["broken"], "product.json")

	_, err = app.products.BySlug("walnut-desk")
	require.NoError(t, err)
}
