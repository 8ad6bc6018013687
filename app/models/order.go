package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxEmailRetries caps the confirmation email retry counter. An order at
// the cap is never picked up by the sweep again.
const MaxEmailRetries = 5

// Order records a completed checkout. Product fields are a snapshot taken
// at checkout time so later product edits never change what the customer
// bought.
type Order struct {
	ID       uint   `gorm:"primaryKey"                    json:"id"`
	PublicID string `gorm:"size:36;uniqueIndex;not null"  json:"public_id"`

	ProductSlug  string          `gorm:"size:255;not null;index"     json:"product_slug"`
	ProductTitle string          `gorm:"size:255;not null"           json:"product_title"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency     string          `gorm:"size:8;not null"             json:"currency"`

	CustomerName  string `gorm:"size:255;not null" json:"customer_name"`
	CustomerEmail string `gorm:"size:255;not null;index" json:"customer_email"`
	CustomerPhone string `gorm:"size:64"           json:"customer_phone"`

	AddressLine1 string `gorm:"size:255;not null" json:"address_line1"`
	AddressLine2 string `gorm:"size:255"          json:"address_line2"`
	City         string `gorm:"size:128;not null" json:"city"`
	State        string `gorm:"size:128"          json:"state"`
	PostalCode   string `gorm:"size:32;not null"  json:"postal_code"`
	Country      string `gorm:"size:128;not null" json:"country"`

	// Payload keeps the full checkout request body for audit.
	Payload JSONMap `gorm:"type:text" json:"payload,omitempty"`

	EmailSent       bool       `gorm:"not null;default:false;index" json:"email_sent"`
	EmailError      string     `gorm:"type:text"                    json:"email_error,omitempty"`
	EmailRetryCount int        `gorm:"not null;default:0"           json:"email_retry_count"`
	NextRetryAt     *time.Time `gorm:"index"                        json:"next_retry_at,omitempty"`
	IsConverted     bool       `gorm:"not null;default:false;index" json:"is_converted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the external uuid identifier.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.PublicID == "" {
		o.PublicID = uuid.NewString()
	}
	return nil
}
