package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/cache"
	"github.com/driftmarket/driftmarket/pkg/logger"
)

// Validation errors surfaced as field maps by the controllers.
var (
	ErrSlugTaken       = errors.New("slug already in use")
	ErrListedByUnknown = errors.New("listed_by is not on the allow-list")
)

// featuredCacheKey caches the storefront featured list in Redis.
const (
	featuredCacheKey = "products:featured"
	featuredCacheTTL = 60 * time.Second
)

// ProductInput is the admin create payload.
type ProductInput struct {
	Slug         string            `json:"slug"          validate:"required,max=255"`
	Title        string            `json:"title"         validate:"required,max=255"`
	Description  string            `json:"description"`
	Price        decimal.Decimal   `json:"price"         validate:"required"`
	Currency     string            `json:"currency"`
	Condition    string            `json:"condition"`
	Category     string            `json:"category"`
	Brand        string            `json:"brand"`
	Images       []string          `json:"images"`
	PayeeEmail   string            `json:"payee_email"   validate:"omitempty,email"`
	CheckoutLink string            `json:"checkout_link" validate:"required,url"`
	Rating       float64           `json:"rating"        validate:"gte=0,lte=5"`
	ReviewCount  int               `json:"review_count"  validate:"gte=0"`
	Reviews      []any             `json:"reviews"`
	Metadata     map[string]any    `json:"metadata"`
	InStock      *bool             `json:"in_stock"`
	ListedBy     string            `json:"listed_by"     validate:"required"`
	Collections  []string          `json:"collections"   validate:"required,min=1"`
}

// ProductService wraps catalogue writes with the marketplace rules:
// listed_by allow-listing, non-empty collections, featured cap, and cache
// invalidation for the storefront.
type ProductService struct {
	products  *repositories.ProductRepository
	cache     *cache.Client
	allowList []string
}

func NewProductService(products *repositories.ProductRepository, c *cache.Client, allowList []string) *ProductService {
	return &ProductService{products: products, cache: c, allowList: allowList}
}

// allowListed reports whether name matches the allow-list, ignoring case.
func (s *ProductService) allowListed(name string) bool {
	for _, a := range s.allowList {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// Create validates the input against marketplace rules and persists the
// product. Field-level validation is the controller's job.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (models.Product, error) {
	if !s.allowListed(in.ListedBy) {
		return models.Product{}, ErrListedByUnknown
	}
	if _, err := s.products.BySlug(in.Slug); err == nil {
		return models.Product{}, ErrSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, err
	}

	p := models.Product{
		Slug:         in.Slug,
		Title:        in.Title,
		Description:  in.Description,
		Price:        in.Price,
		Currency:     defaultCurrency(in.Currency),
		Condition:    in.Condition,
		Category:     in.Category,
		Brand:        in.Brand,
		Images:       models.StringList(in.Images),
		PayeeEmail:   in.PayeeEmail,
		CheckoutLink: in.CheckoutLink,
		Rating:       in.Rating,
		ReviewCount:  in.ReviewCount,
		Reviews:      models.JSONList(in.Reviews),
		Metadata:     models.JSONMap(in.Metadata),
		InStock:      in.InStock == nil || *in.InStock,
		ListedBy:     in.ListedBy,
		Collections:  models.StringList(in.Collections),
	}

	if err := s.products.Create(&p); err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

// Patch applies a partial update. Empty strings for NOT-NULL columns are
// stripped rather than written, so a sparse client payload cannot blank
// out required fields.
func (s *ProductService) Patch(ctx context.Context, slug string, fields map[string]any) (models.Product, error) {
	cols := make(map[string]any, len(fields))

	for key, val := range fields {
		col, ok := patchableColumns[key]
		if !ok {
			continue
		}
		if str, isStr := val.(string); isStr && str == "" && requiredColumns[col] {
			continue
		}
		if col == "listed_by" {
			name, _ := val.(string)
			if !s.allowListed(name) {
				return models.Product{}, ErrListedByUnknown
			}
		}
		if col == "collections" {
			if list, isList := val.([]any); isList && len(list) == 0 {
				continue
			}
		}
		cols[col] = normalizePatchValue(col, val)
	}

	if len(cols) > 0 {
		if err := s.products.UpdateColumns(slug, cols); err != nil {
			return models.Product{}, err
		}
		s.invalidate(ctx)
	}
	return s.products.BySlug(slug)
}

// Feature marks the product featured, enforcing the cap.
func (s *ProductService) Feature(ctx context.Context, slug string) error {
	if err := s.products.SetFeatured(slug, true); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Unfeature clears the featured flag.
func (s *ProductService) Unfeature(ctx context.Context, slug string) error {
	if err := s.products.SetFeatured(slug, false); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Delete removes the product row. Stored images are intentionally left
// behind; orders keep their snapshots.
func (s *ProductService) Delete(ctx context.Context, slug string) error {
	if err := s.products.Delete(slug); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Featured returns the featured products, served from Redis when warm.
func (s *ProductService) Featured(ctx context.Context) ([]models.Product, error) {
	var cached []models.Product
	if s.cache.Get(ctx, featuredCacheKey, &cached) {
		return cached, nil
	}

	featured := true
	products, _, err := s.products.List(repositories.ProductFilter{Featured: &featured, Limit: 100})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, featuredCacheKey, products, featuredCacheTTL); err != nil {
		logger.Warn("products: cache featured", "error", err)
	}
	return products, nil
}

func (s *ProductService) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, featuredCacheKey); err != nil {
		logger.Warn("products: invalidate featured cache", "error", err)
	}
}

// patchableColumns maps JSON field names to columns writable via PATCH.
// Slug and is_featured are excluded: slug is the row identity, featuring
// goes through the capped endpoints.
var patchableColumns = map[string]string{
	"title":         "title",
	"description":   "description",
	"price":         "price",
	"currency":      "currency",
	"condition":     "condition",
	"category":      "category",
	"brand":         "brand",
	"images":        "images",
	"payee_email":   "payee_email",
	"checkout_link": "checkout_link",
	"rating":        "rating",
	"review_count":  "review_count",
	"reviews":       "reviews",
	"metadata":      "metadata",
	"in_stock":      "in_stock",
	"listed_by":     "listed_by",
	"collections":   "collections",
}

// requiredColumns are NOT NULL in the schema; empty strings are stripped
// from patches instead of written.
var requiredColumns = map[string]bool{
	"title":         true,
	"currency":      true,
	"checkout_link": true,
	"listed_by":     true,
}

// normalizePatchValue converts decoded JSON values into types the JSON
// column serializers understand.
func normalizePatchValue(col string, val any) any {
	switch col {
	case "images", "collections":
		if list, ok := val.([]any); ok {
			out := make(models.StringList, 0, len(list))
			for _, item := range list {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			return out
		}
	case "reviews":
		if list, ok := val.([]any); ok {
			return models.JSONList(list)
		}
	case "metadata":
		if m, ok := val.(map[string]any); ok {
			return models.JSONMap(m)
		}
	}
	return val
}

func defaultCurrency(c string) string {
	if c == "" {
		return "INR"
	}
	return c
}
