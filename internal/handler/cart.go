package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/courseloop/coursepay/internal/domain/cart"
)

type cartItemResponse struct {
	CourseID string          `json:"courseId"`
	Price    decimal.Decimal `json:"price"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{CourseID: it.CourseID, Price: it.Price}
	}
	return cartResponse{Items: items, Total: c.Total}
}

// GetCart handles GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	user, _ := IdentityFromContext(r.Context())

	c, err := h.carts.Get(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// CartCount handles GET /api/cart/count.
func (h *Handler) CartCount(w http.ResponseWriter, r *http.Request) {
	user, _ := IdentityFromContext(r.Context())

	n, err := h.carts.Count(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// AddToCart handles POST /api/cart/items.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	user, _ := IdentityFromContext(r.Context())

	var req struct {
		CourseID string `json:"courseId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		writeError(w, http.StatusBadRequest, "courseId is required")
		return
	}

	c, err := h.carts.Add(r.Context(), user.UserID, req.CourseID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(c))
}

// RemoveFromCart handles DELETE /api/cart/items/{courseID}.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	user, _ := IdentityFromContext(r.Context())

	c, err := h.carts.Remove(r.Context(), user.UserID, r.PathValue("courseID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// ClearCart handles DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	user, _ := IdentityFromContext(r.Context())

	c, err := h.carts.Clear(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}
