package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-express-checkout/internal/checkout"
	"ms-express-checkout/internal/checkout/db"
	"ms-express-checkout/internal/checkout/qr"
	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/logger"
)

type Handler struct {
	Checkout *checkout.Service
	QR       *qr.Generator
	Logger   *logger.Logger
}

// SetExpressCheckout starts the flow: amount, currency and the optional
// opaque data arrive as form or query values, the response is a redirect
// to the gateway's hosted approval page.
func (h *Handler) SetExpressCheckout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := strconv.ParseFloat(r.Form.Get("amount"), 64)
	if err != nil || amount <= 0 {
		h.Logger.Warn("API", fmt.Sprintf("SetExpressCheckout: invalid amount %q", r.Form.Get("amount")))
		http.Error(w, "Amount must be a positive number", http.StatusBadRequest)
		return
	}

	currency := r.Form.Get("currency")
	if currency == "" {
		currency = "USD"
	}
	data := r.Form.Get("data")

	h.Logger.Info("API", fmt.Sprintf("SetExpressCheckout: amount=%.2f currency=%s", amount, currency))

	outcome, err := h.Checkout.SetExpressCheckout(amount, currency, data)
	if err != nil {
		h.respondError(w, "SetExpressCheckout", err)
		return
	}

	http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
}

// GetExpressCheckoutDetails is where the gateway sends the customer
// back after approval.
func (h *Handler) GetExpressCheckoutDetails(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("GetExpressCheckoutDetails: token=%s", token))

	outcome, err := h.Checkout.GetExpressCheckoutDetails(token)
	if err != nil {
		h.respondError(w, "GetExpressCheckoutDetails", err)
		return
	}

	http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
}

// ConfirmPayment submits the capture and lands the customer on the
// success or failure page.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("ConfirmPayment: token=%s", token))

	outcome, err := h.Checkout.ConfirmPayment(token)
	if err != nil {
		h.respondError(w, "ConfirmPayment", err)
		return
	}

	http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
}

// CheckoutQR renders the approval URL for an existing checkout as a PNG
// QR code.
func (h *Handler) CheckoutQR(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	if _, err := h.Checkout.DB.GetPaymentByToken(token); err != nil {
		h.respondError(w, "CheckoutQR", err)
		return
	}

	png, err := h.QR.ApprovalQR(token)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckoutQR: failed to render QR: %v", err))
		http.Error(w, "Could not render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckoutQR: failed to write response: %v", err))
	}
}

// respondError maps the service's error kinds onto HTTP. Gateway
// refusals outside confirmation surface as a generic server error on
// purpose: nothing was persisted, so there is nothing friendlier to say.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var userErr *gateway.UserFacingError
	switch {
	case errors.As(err, &userErr):
		h.Logger.Warn("API", fmt.Sprintf("%s: %s", op, userErr.Message))
		http.Error(w, userErr.Message, http.StatusBadRequest)
	case errors.Is(err, db.ErrPaymentNotFound):
		h.Logger.Warn("API", fmt.Sprintf("%s: payment not found", op))
		http.Error(w, "Payment not found", http.StatusNotFound)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
