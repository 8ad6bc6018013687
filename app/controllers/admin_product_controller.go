package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/logger"
	"github.com/driftmarket/driftmarket/pkg/response"
	"github.com/driftmarket/driftmarket/pkg/router"
	"github.com/driftmarket/driftmarket/pkg/validate"
)

// maxImportSize caps uploaded import archives.
const maxImportSize = 100 << 20 // 100 MiB

// AdminProductController serves the back-office catalogue endpoints.
type AdminProductController struct {
	products *repositories.ProductRepository
	service  *services.ProductService
	exporter *services.ExportService
	importer *services.ImportService
}

func NewAdminProductController(products *repositories.ProductRepository, service *services.ProductService, exporter *services.ExportService, importer *services.ImportService) *AdminProductController {
	return &AdminProductController{
		products: products,
		service:  service,
		exporter: exporter,
		importer: importer,
	}
}

// List handles GET /api/admin/products.
func (c *AdminProductController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.ProductFilter{
		Collection: q.Get("collection"),
		Query:      q.Get("q"),
		Page:       atoiDefault(q.Get("page"), 1),
		Limit:      atoiDefault(q.Get("limit"), 50),
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

// Create handles POST /api/admin/products.
func (c *AdminProductController) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		response.ValidationError(w, errs)
		return
	}

	p, err := c.service.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSlugTaken):
			response.ValidationError(w, map[string]string{"slug": err.Error()})
		case errors.Is(err, services.ErrListedByUnknown):
			response.ValidationError(w, map[string]string{"listed_by": err.Error()})
		default:
			response.Error(w, http.StatusInternalServerError, "could not create product")
		}
		return
	}
	response.Created(w, p)
}

// Show handles GET /api/admin/products/{slug}.
func (c *AdminProductController) Show(w http.ResponseWriter, r *http.Request) {
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

// Update handles PATCH /api/admin/products/{slug}.
func (c *AdminProductController) Update(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := c.service.Patch(r.Context(), router.Param(r, "slug"), fields)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.NotFound(w)
		case errors.Is(err, services.ErrListedByUnknown):
			response.ValidationError(w, map[string]string{"listed_by": err.Error()})
		default:
			response.Error(w, http.StatusInternalServerError, "could not update product")
		}
		return
	}
	response.Success(w, p)
}

// Delete handles DELETE /api/admin/products/{slug}.
func (c *AdminProductController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Delete(r.Context(), router.Param(r, "slug")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not delete product")
		return
	}
	response.Success(w, map[string]bool{"deleted": true})
}

// Feature handles POST /api/admin/products/{slug}/feature.
func (c *AdminProductController) Feature(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Feature(r.Context(), router.Param(r, "slug")); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.NotFound(w)
		case errors.Is(err, repositories.ErrFeaturedLimit):
			response.Conflict(w, err.Error())
		default:
			response.Error(w, http.StatusInternalServerError, "could not feature product")
		}
		return
	}
	response.Success(w, map[string]bool{"featured": true})
}

// Unfeature handles POST /api/admin/products/{slug}/unfeature.
func (c *AdminProductController) Unfeature(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Unfeature(r.Context(), router.Param(r, "slug")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not unfeature product")
		return
	}
	response.Success(w, map[string]bool{"featured": false})
}

// Download handles GET /api/admin/products/{slug}/download.
func (c *AdminProductController) Download(w http.ResponseWriter, r *http.Request) {
	slug := router.Param(r, "slug")
	if _, err := c.products.BySlug(slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		response.Error(w, http.StatusInternalServerError, "could not load product")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", slug+".zip"))
	if err := c.exporter.ExportOne(w, slug); err != nil {
		// Headers are already out; log instead of rewriting the status.
		logger.Error("export: single product", "slug", slug, "error", err)
	}
}

// BulkExport handles POST /api/admin/products/bulk-export.
func (c *AdminProductController) BulkExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slugs []string `json:"slugs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Slugs) == 0 {
		response.ValidationError(w, map[string]string{"slugs": "slugs must not be empty"})
		return
	}

	for _, slug := range body.Slugs {
		if _, err := c.products.BySlug(slug); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.ValidationError(w, map[string]string{"slugs": "unknown slug: " + slug})
				return
			}
			response.Error(w, http.StatusInternalServerError, "could not load products")
			return
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="products.zip"`)
	if err := c.exporter.Export(w, body.Slugs); err != nil {
		logger.Error("export: bulk", "count", len(body.Slugs), "error", err)
	}
}

// Import handles POST /api/admin/products/import (multipart, field
// "archive").
func (c *AdminProductController) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		response.ValidationError(w, map[string]string{"archive": "archive file is required"})
		return
	}
	defer file.Close()

	result, err := c.importer.Import(file, header.Size)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "could not read archive")
		return
	}
	response.PartialFailure(w, map[string]int{
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	}, result.Errors)
}
