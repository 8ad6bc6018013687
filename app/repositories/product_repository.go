package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driftmarket/driftmarket/app/models"
)

// ErrFeaturedLimit is returned when featuring a product would exceed the
// configured cap.
var ErrFeaturedLimit = errors.New("featured product limit reached")

// ProductFilter narrows List queries.
type ProductFilter struct {
	Collection string
	Query      string // matches title or brand
	Featured   *bool
	InStock    *bool
	Page       int
	Limit      int
}

// ProductRepository handles database operations for Product.
type ProductRepository struct {
	db            *gorm.DB
	featuredLimit int
}

func NewProductRepository(db *gorm.DB, featuredLimit int) *ProductRepository {
	return &ProductRepository{db: db, featuredLimit: featuredLimit}
}

// BySlug looks up a product by its slug.
func (r *ProductRepository) BySlug(slug string) (models.Product, error) {
	var p models.Product
	err := r.db.Where("slug = ?", slug).First(&p).Error
	return p, err
}

// List returns products matching the filter plus the unpaginated total.
func (r *ProductRepository) List(f ProductFilter) ([]models.Product, int64, error) {
	q := r.db.Model(&models.Product{})

	if f.Collection != "" {
		// Collections is a JSON array column; match the quoted element.
		q = q.Where("collections LIKE ?", "%"+fmt.Sprintf("%q", f.Collection)+"%")
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(brand) LIKE ?", like, like)
	}
	if f.Featured != nil {
		q = q.Where("is_featured = ?", *f.Featured)
	}
	if f.InStock != nil {
		q = q.Where("in_stock = ?", *f.InStock)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var products []models.Product
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

// Create persists a new product.
func (r *ProductRepository) Create(p *models.Product) error {
	return r.db.Create(p).Error
}

// Update persists changes to an existing product.
func (r *ProductRepository) Update(p *models.Product) error {
	return r.db.Save(p).Error
}

// UpdateColumns applies a partial update by slug.
func (r *ProductRepository) UpdateColumns(slug string, cols map[string]any) error {
	res := r.db.Model(&models.Product{}).Where("slug = ?", slug).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertBySlug inserts the product, or replaces the existing row with the
// same slug. Used by the ZIP import.
func (r *ProductRepository) UpsertBySlug(p *models.Product) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "price", "currency", "condition",
			"category", "brand", "images", "payee_email", "checkout_link",
			"rating", "review_count", "reviews", "metadata", "in_stock",
			"listed_by", "collections", "updated_at",
		}),
	}).Create(p).Error
}

// Delete removes a product by slug. Physical delete; stored images are
// left in place.
func (r *ProductRepository) Delete(slug string) error {
	res := r.db.Where("slug = ?", slug).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetFeatured toggles the featured flag. Enabling runs inside a
// transaction that locks the currently-featured rows before counting,
// so two concurrent calls cannot both pass the cap check. sqlite has no
// FOR UPDATE; its single write connection serializes the transactions
// instead.
func (r *ProductRepository) SetFeatured(slug string, featured bool) error {
	if !featured {
		return r.UpdateColumns(slug, map[string]any{"is_featured": false})
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("is_featured = ? AND slug <> ?", true, slug)
		if name := tx.Dialector.Name(); name == "postgres" || name == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var held []models.Product
		if err := q.Find(&held).Error; err != nil {
			return err
		}
		if len(held) >= r.featuredLimit {
			return ErrFeaturedLimit
		}

		res := tx.Model(&models.Product{}).
			Where("slug = ?", slug).
			Update("is_featured", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FeaturedCount returns the number of currently featured products.
func (r *ProductRepository) FeaturedCount() (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).Where("is_featured = ?", true).Count(&count).Error
	return count, err
}
