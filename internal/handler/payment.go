package handler

import (
	"io"
	"net/http"

	"github.com/averlane/storefront/internal/domain/payment"
)

type checkoutSessionResponse struct {
	OrderID     int64  `json:"order_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// createCheckoutSession starts a hosted payment for one of the caller's
// orders.
func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if o.UserID != u.ID {
		h.writeError(w, r, errForbidden)
		return
	}

	result, err := h.payments.CreateCheckout(r.Context(), o)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutSessionResponse{
		OrderID:     result.OrderID,
		SessionID:   result.SessionID,
		CheckoutURL: result.CheckoutURL,
	})
}

// paymentWebhook receives signed gateway callbacks. Verification failures are
// rejected; recognized events drive the payment state machine; everything
// else is acknowledged so the gateway stops retrying.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, payment.ErrInvalidPayload)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if err := h.payments.HandleWebhook(r.Context(), payload, sig); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
