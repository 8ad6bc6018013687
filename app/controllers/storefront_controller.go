package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/response"
	"github.com/driftmarket/driftmarket/pkg/router"
)

// StorefrontController serves the public catalogue endpoints.
type StorefrontController struct {
	products *repositories.ProductRepository
	service  *services.ProductService
}

func NewStorefrontController(products *repositories.ProductRepository, service *services.ProductService) *StorefrontController {
	return &StorefrontController{products: products, service: service}
}

// List handles GET /api/products.
func (c *StorefrontController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Featured-only listing is the storefront homepage query; serve it
	// through the cache.
	if q.Get("featured") == "true" && len(q) == 1 {
		products, err := c.service.Featured(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "could not load products")
			return
		}
		response.Success(w, products)
		return
	}

	filter := repositories.ProductFilter{
		Collection: q.Get("collection"),
		Query:      q.Get("q"),
		Page:       atoiDefault(q.Get("page"), 1),
		Limit:      atoiDefault(q.Get("limit"), 20),
	}
	if v := q.Get("featured"); v != "" {
		b := v == "true"
		filter.Featured = &b
	}
	if v := q.Get("in_stock"); v != "" {
		b := v == "true"
		filter.InStock = &b
	}

	products, total, err := c.products.List(filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "could not load products")
		return
	}

	response.Paginated(w, products, response.Pagination{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: totalPages(total, filter.Limit),
	})
}

// Show handles GET /api/products/{slug}.
func (c *StorefrontController) Show(w http.ResponseWriter, r *http.Request) {
	p, err := c.products.BySlug(router.Param(r, "slug"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not load product")
		return
	}
	response.Success(w, p)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func totalPages(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
