package services

import (
	"fmt"
	"strings"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/event"
	"github.com/driftmarket/driftmarket/pkg/logger"
	"github.com/driftmarket/driftmarket/pkg/mail"
)

// OrderMailer formats and sends the order confirmation email and records
// the outcome on the order row.
type OrderMailer struct {
	transport mail.Transport
	orders    *repositories.OrderRepository
}

func NewOrderMailer(transport mail.Transport, orders *repositories.OrderRepository) *OrderMailer {
	return &OrderMailer{transport: transport, orders: orders}
}

// Deliver attempts one confirmation send for the order and persists the
// result: success clears the error state, failure bumps the retry counter
// and schedules the next attempt. Returns the send error, if any.
func (m *OrderMailer) Deliver(o models.Order) error {
	msg := mail.Compose().
		To(o.CustomerEmail).
		Subject(fmt.Sprintf("Your Driftmarket order %s", shortID(o.PublicID))).
		Body(confirmationHTML(o)).
		Text(confirmationText(o))

	if err := m.transport.Send(msg); err != nil {
		logger.Warn("mailer: send failed",
			"order", o.PublicID, "retry_count", o.EmailRetryCount, "error", err)
		if dbErr := m.orders.MarkEmailFailed(o.PublicID, err); dbErr != nil {
			logger.Error("mailer: record failure", "order", o.PublicID, "error", dbErr)
		}
		event.FireAsync(event.OrderEmailFailed, o.PublicID)
		return err
	}

	if dbErr := m.orders.MarkEmailSent(o.PublicID); dbErr != nil {
		logger.Error("mailer: record success", "order", o.PublicID, "error", dbErr)
	}
	event.FireAsync(event.OrderEmailSent, o.PublicID)
	logger.Info("mailer: confirmation sent", "order", o.PublicID, "to", o.CustomerEmail)
	return nil
}

func shortID(publicID string) string {
	if i := strings.IndexByte(publicID, '-'); i > 0 {
		return strings.ToUpper(publicID[:i])
	}
	return publicID
}

func confirmationHTML(o models.Order) string {
	var b strings.Builder
	b.WriteString("<h2>Thanks for your order!</h2>")
	fmt.Fprintf(&b, "<p>Hi %s,</p>", o.CustomerName)
	fmt.Fprintf(&b, "<p>We received your order <strong>%s</strong> for <strong>%s</strong> (%s %s).</p>",
		shortID(o.PublicID), o.ProductTitle, o.Currency, o.Price.StringFixed(2))
	b.WriteString("<p>Shipping to:</p><p>")
	for _, line := range addressLines(o) {
		b.WriteString(line)
		b.WriteString("<br>")
	}
	b.WriteString("</p><p>We will be in touch once it ships.</p>")
	return b.String()
}

func confirmationText(o models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", o.CustomerName)
	fmt.Fprintf(&b, "We received your order %s for %s (%s %s).\n\nShipping to:\n",
		shortID(o.PublicID), o.ProductTitle, o.Currency, o.Price.StringFixed(2))
	for _, line := range addressLines(o) {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nWe will be in touch once it ships.\n")
	return b.String()
}

func addressLines(o models.Order) []string {
	lines := []string{o.AddressLine1}
	if o.AddressLine2 != "" {
		lines = append(lines, o.AddressLine2)
	}
	locality := o.City
	if o.State != "" {
		locality += ", " + o.State
	}
	lines = append(lines, locality+" "+o.PostalCode, o.Country)
	return lines
}
