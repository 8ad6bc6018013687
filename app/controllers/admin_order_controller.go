package controllers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/response"
	"github.com/driftmarket/driftmarket/pkg/router"
)

// AdminOrderController serves the back-office order endpoints.
type AdminOrderController struct {
	orders *repositories.OrderRepository
	sweep  *services.SweepService
}

func NewAdminOrderController(orders *repositories.OrderRepository, sweep *services.SweepService) *AdminOrderController {
	return &AdminOrderController{orders: orders, sweep: sweep}
}

// List handles GET /api/admin/orders.
func (c *AdminOrderController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.OrderFilter{
		Page:  atoiDefault(q.Get("page"), 1),
		Limit: atoiDefault(q.Get("limit"), 50),
	}
	if v := q.Get("converted"); v != "" {
		b := v == "true"
		filter.Converted = &b
	}

	orders, total, err := c.orders.List(filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "could not load orders")
		return
	}
	response.Paginated(w, orders, response.Pagination{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: totalPages(total, filter.Limit),
	})
}

// Show handles GET /api/admin/orders/{id}.
func (c *AdminOrderController) Show(w http.ResponseWriter, r *http.Request) {
	o, err := c.orders.ByPublicID(router.Param(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not load order")
		return
	}
	response.Success(w, o)
}

// RetryEmail handles POST /api/admin/orders/{id}/retry-email. The send
// error, if any, is surfaced to the admin.
func (c *AdminOrderController) RetryEmail(w http.ResponseWriter, r *http.Request) {
	o, err := c.sweep.RetryOne(router.Param(r, "id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(w, o)
}

// RetryEmails handles POST /api/admin/orders/retry-emails with body
// {"maxOrders": N}. maxOrders=0 is a successful no-op.
func (c *AdminOrderController) RetryEmails(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MaxOrders int `json:"maxOrders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.MaxOrders < 0 {
		response.ValidationError(w, map[string]string{"maxOrders": "maxOrders must not be negative"})
		return
	}

	result, err := c.sweep.Run(r.Context(), body.MaxOrders, "admin")
	if err != nil {
		if errors.Is(err, services.ErrSweepRunning) {
			response.Conflict(w, err.Error())
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(w, result)
}

// MarkConverted handles POST /api/admin/orders/{id}/mark-converted.
func (c *AdminOrderController) MarkConverted(w http.ResponseWriter, r *http.Request) {
	if err := c.orders.MarkConverted(router.Param(r, "id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not update order")
		return
	}
	response.Success(w, map[string]bool{"converted": true})
}

// Delete handles DELETE /api/admin/orders/{id}.
func (c *AdminOrderController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.orders.Delete(router.Param(r, "id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not delete order")
		return
	}
	response.Success(w, map[string]bool{"deleted": true})
}

// Export handles GET /api/admin/orders/export, streaming a CSV dump.
func (c *AdminOrderController) Export(w http.ResponseWriter, r *http.Request) {
	var converted *bool
	if v := r.URL.Query().Get("converted"); v != "" {
		b := v == "true"
		converted = &b
	}

	orders, err := c.orders.All(converted)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "could not load orders")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{
		"public_id", "created_at", "product_slug", "product_title",
		"price", "currency", "customer_name", "customer_email",
		"customer_phone", "address_line1", "address_line2", "city",
		"state", "postal_code", "country", "email_sent",
		"email_retry_count", "is_converted",
	})
	for _, o := range orders {
		cw.Write(orderCSVRow(o))
	}
	cw.Flush()
}

func orderCSVRow(o models.Order) []string {
	return []string{
		o.PublicID,
		o.CreatedAt.Format(time.RFC3339),
		o.ProductSlug,
		o.ProductTitle,
		o.Price.StringFixed(2),
		o.Currency,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		o.AddressLine1,
		o.AddressLine2,
		o.City,
		o.State,
		o.PostalCode,
		o.Country,
		strconv.FormatBool(o.EmailSent),
		strconv.Itoa(o.EmailRetryCount),
		strconv.FormatBool(o.IsConverted),
	}
}
