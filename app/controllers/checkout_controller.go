package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/response"
	"github.com/driftmarket/driftmarket/pkg/validate"
)

// maxCheckoutBody caps the checkout request payload.
const maxCheckoutBody = 1 << 20 // 1 MiB

// CheckoutController handles the storefront checkout endpoint.
type CheckoutController struct {
	service *services.CheckoutService
}

func NewCheckoutController(service *services.CheckoutService) *CheckoutController {
	return &CheckoutController{service: service}
}

// Create handles POST /api/checkout (and its legacy alias
// /api/send-shipping-email). Email failure is never surfaced as a
// request failure: the order was saved, the response just reports
// emailSent=false.
func (c *CheckoutController) Create(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCheckoutBody))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var in services.CheckoutInput
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if errs := validate.Struct(in); validate.HasErrors(errs) {
		response.ValidationError(w, errs)
		return
	}

	// Keep the raw request for audit alongside the parsed fields.
	var payload models.JSONMap
	_ = json.Unmarshal(raw, &payload)

	result, err := c.service.Place(in, payload)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "could not save order")
		return
	}

	response.Success(w, map[string]any{
		"orderId":   result.OrderID,
		"emailSent": result.EmailSent,
	})
}
