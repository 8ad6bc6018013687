package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a marketplace listing. Slug is the stable external key used
// by the storefront, the admin API and the ZIP import/export pipeline.
type Product struct {
	ID          uint            `gorm:"primaryKey"                    json:"id"`
	Slug        string          `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Title       string          `gorm:"size:255;not null;index"       json:"title"`
	Description string          `gorm:"type:text"                     json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"price"`
	Currency    string          `gorm:"size:8;not null;default:INR"   json:"currency"`
	Condition   string          `gorm:"size:64"                       json:"condition"`
	Category    string          `gorm:"size:128;index"                json:"category"`
	Brand       string          `gorm:"size:128;index"                json:"brand"`

	// Images holds ordered public URLs. Import rewrites bundled files
	// to storage URLs before saving.
	Images      StringList `gorm:"type:text" json:"images"`
	PayeeEmail  string     `gorm:"size:255"  json:"payee_email"`
	CheckoutLink string    `gorm:"size:1024;not null" json:"checkout_link"`

	Rating      float64    `gorm:"not null;default:0" json:"rating"`
	ReviewCount int        `gorm:"not null;default:0" json:"review_count"`
	Reviews     JSONList   `gorm:"type:text"          json:"reviews,omitempty"`
	Metadata    JSONMap    `gorm:"type:text"          json:"metadata,omitempty"`

	InStock     bool       `gorm:"not null;default:true"  json:"in_stock"`
	IsFeatured  bool       `gorm:"not null;default:false;index" json:"is_featured"`
	ListedBy    string     `gorm:"size:128;not null"      json:"listed_by"`
	Collections StringList `gorm:"type:text"              json:"collections"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
