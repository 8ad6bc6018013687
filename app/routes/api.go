package routes

import (
	"net/http"
	"time"

	"github.com/driftmarket/driftmarket/app/controllers"
	"github.com/driftmarket/driftmarket/config"
	"github.com/driftmarket/driftmarket/pkg/metrics"
	"github.com/driftmarket/driftmarket/pkg/middleware"
	"github.com/driftmarket/driftmarket/pkg/response"
	"github.com/driftmarket/driftmarket/pkg/router"
)

// Controllers bundles everything the API surface needs.
type Controllers struct {
	Storefront *controllers.StorefrontController
	Checkout   *controllers.CheckoutController
	AdminAuth  *controllers.AdminAuthController
	Products   *controllers.AdminProductController
	Orders     *controllers.AdminOrderController
	Cron       *controllers.CronController
}

// RegisterAPI mounts the full HTTP surface on r.
func RegisterAPI(r *router.Router, c Controllers) {
	r.Get("/healthz", "healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", "metrics", metrics.Handler())

	api := r.Group("/api")

	// Storefront.
	api.Get("/products", "products.list", c.Storefront.List)
	api.Get("/products/{slug}", "products.show", c.Storefront.Show)
	checkoutLimit := middleware.RateLimit(60, time.Minute)
	api.Post("/checkout", "checkout", c.Checkout.Create, checkoutLimit)
	// Legacy alias kept for older storefront builds.
	api.Post("/send-shipping-email", "checkout.legacy", c.Checkout.Create, checkoutLimit)

	// Admin.
	api.Post("/admin/login", "admin.login", c.AdminAuth.Login)

	admin := api.Group("/admin", middleware.AdminAuth(middleware.AdminAuthOptions{
		AllowList: config.AdminEmails(),
		Bypass:    config.AuthBypass(),
	}))

	admin.Get("/products", "admin.products.list", c.Products.List)
	admin.Post("/products", "admin.products.create", c.Products.Create)
	admin.Post("/products/bulk-export", "admin.products.bulk_export", c.Products.BulkExport)
	admin.Post("/products/import", "admin.products.import", c.Products.Import)
	admin.Get("/products/{slug}", "admin.products.show", c.Products.Show)
	admin.Patch("/products/{slug}", "admin.products.update", c.Products.Update)
	admin.Delete("/products/{slug}", "admin.products.delete", c.Products.Delete)
	admin.Post("/products/{slug}/feature", "admin.products.feature", c.Products.Feature)
	admin.Post("/products/{slug}/unfeature", "admin.products.unfeature", c.Products.Unfeature)
	admin.Get("/products/{slug}/download", "admin.products.download", c.Products.Download)

	admin.Get("/orders", "admin.orders.list", c.Orders.List)
	admin.Get("/orders/export", "admin.orders.export", c.Orders.Export)
	admin.Post("/orders/retry-emails", "admin.orders.retry_emails", c.Orders.RetryEmails)
	admin.Get("/orders/{id}", "admin.orders.show", c.Orders.Show)
	admin.Delete("/orders/{id}", "admin.orders.delete", c.Orders.Delete)
	admin.Post("/orders/{id}/retry-email", "admin.orders.retry_email", c.Orders.RetryEmail)
	admin.Post("/orders/{id}/mark-converted", "admin.orders.mark_converted", c.Orders.MarkConverted)

	// Cron.
	cron := api.Group("/cron", middleware.CronAuth(config.CronSecret()))
	cron.Get("/retry-failed-emails", "cron.retry_emails", c.Cron.RetryFailedEmails)
}
