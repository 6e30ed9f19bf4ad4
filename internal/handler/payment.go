package handler

import (
	"net/http"

	"github.com/courseloop/coursepay/internal/domain/payment"
)

// Checkout handles GET /api/payment/checkout: it converts the caller's cart
// into a pending payment intent and returns the hosted checkout URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, _ := IdentityFromContext(r.Context())

	result, err := h.payments.InitializeCheckout(r.Context(), user)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "checkout initialized successfully",
		"checkoutUrl": result.CheckoutURL,
		"reused":      result.Reused,
	})
}

// VerifyPayment handles GET /api/payment/verify?reference=... — the polling
// path into the settlement engine. Repeat calls for a settled payment return
// the same success-shaped "already processed" answer.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "payment reference is required")
		return
	}

	result, err := h.payments.VerifyAndSettle(r.Context(), reference)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if result == payment.ResultFailed {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"message": result.Message()})
}
