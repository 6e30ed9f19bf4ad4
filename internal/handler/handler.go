// Package handler exposes the cart, checkout, verify, and webhook HTTP
// endpoints and maps domain errors to transport responses.
package handler

import (
	"net/http"

	"github.com/courseloop/coursepay/internal/domain/cart"
	"github.com/courseloop/coursepay/internal/domain/payment"
)

// Handler routes API requests to the cart and payment services.
type Handler struct {
	carts         *cart.Service
	payments      *payment.Service
	webhookSecret []byte
}

// NewHandler constructs a Handler. webhookSecret is the shared gateway
// secret used to authenticate webhook payloads.
func NewHandler(carts *cart.Service, payments *payment.Service, webhookSecret []byte) *Handler {
	return &Handler{
		carts:         carts,
		payments:      payments,
		webhookSecret: webhookSecret,
	}
}

// Register mounts all routes on mux. Cart and payment endpoints require an
// authenticated identity; the webhook authenticates by signature instead.
func (h *Handler) Register(mux *http.ServeMux, sec *Security) {
	mux.Handle("GET /api/cart", sec.Authenticate(h.GetCart))
	mux.Handle("GET /api/cart/count", sec.Authenticate(h.CartCount))
	mux.Handle("POST /api/cart/items", sec.Authenticate(h.AddToCart))
	mux.Handle("DELETE /api/cart/items/{courseID}", sec.Authenticate(h.RemoveFromCart))
	mux.Handle("DELETE /api/cart", sec.Authenticate(h.ClearCart))

	mux.Handle("GET /api/payment/checkout", sec.Authenticate(h.Checkout))
	mux.Handle("GET /api/payment/verify", sec.Authenticate(h.VerifyPayment))

	mux.HandleFunc("POST /webhook/paystack", h.Webhook)
}
