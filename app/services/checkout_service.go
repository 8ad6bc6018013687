package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/event"
	"github.com/driftmarket/driftmarket/pkg/logger"
)

// CheckoutInput is the decoded checkout request body.
type CheckoutInput struct {
	ShippingData ShippingData    `json:"shipping_data" validate:"required"`
	Product      ProductSnapshot `json:"product"       validate:"required"`
}

// ShippingData carries customer and delivery details.
type ShippingData struct {
	Name         string `json:"name"          validate:"required"`
	Email        string `json:"email"         validate:"required,email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"          validate:"required"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"   validate:"required"`
	Country      string `json:"country"       validate:"required"`
}

// ProductSnapshot is what the customer bought, captured at checkout time.
type ProductSnapshot struct {
	Slug     string          `json:"slug"     validate:"required"`
	Title    string          `json:"title"    validate:"required"`
	Price    decimal.Decimal `json:"price"    validate:"required"`
	Currency string          `json:"currency"`
}

// CheckoutResult is returned to the storefront.
type CheckoutResult struct {
	OrderID   string
	EmailSent bool
}

// CheckoutService persists orders and dispatches the confirmation email.
type CheckoutService struct {
	orders       *repositories.OrderRepository
	mailer       *OrderMailer
	emailTimeout time.Duration
}

func NewCheckoutService(orders *repositories.OrderRepository, mailer *OrderMailer, emailTimeout time.Duration) *CheckoutService {
	return &CheckoutService{orders: orders, mailer: mailer, emailTimeout: emailTimeout}
}

// Place writes the order row, then races the confirmation email against
// the timeout. The row is saved before any send attempt so a slow or dead
// SMTP server never loses an order. If the timer wins the send keeps
// going in the background and records its own outcome.
func (s *CheckoutService) Place(in CheckoutInput, payload models.JSONMap) (CheckoutResult, error) {
	currency := in.Product.Currency
	if currency == "" {
		currency = "INR"
	}

	order := models.Order{
		ProductSlug:   in.Product.Slug,
		ProductTitle:  in.Product.Title,
		Price:         in.Product.Price,
		Currency:      currency,
		CustomerName:  in.ShippingData.Name,
		CustomerEmail: in.ShippingData.Email,
		CustomerPhone: in.ShippingData.Phone,
		AddressLine1:  in.ShippingData.AddressLine1,
		AddressLine2:  in.ShippingData.AddressLine2,
		City:          in.ShippingData.City,
		State:         in.ShippingData.State,
		PostalCode:    in.ShippingData.PostalCode,
		Country:       in.ShippingData.Country,
		Payload:       payload,
	}

	if err := s.orders.Create(&order); err != nil {
		return CheckoutResult{}, fmt.Errorf("checkout: save order: %w", err)
	}
	event.FireAsync(event.OrderCreated, order.PublicID)
	logger.Info("checkout: order saved", "order", order.PublicID, "product", order.ProductSlug)

	done := make(chan error, 1)
	go func() {
		done <- s.mailer.Deliver(order)
	}()

	select {
	case err := <-done:
		return CheckoutResult{OrderID: order.PublicID, EmailSent: err == nil}, nil
	case <-time.After(s.emailTimeout):
		logger.Warn("checkout: email still pending, responding early", "order", order.PublicID)
		return CheckoutResult{OrderID: order.PublicID, EmailSent: false}, nil
	}
}
