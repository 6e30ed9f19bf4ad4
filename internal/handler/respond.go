package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/courseloop/coursepay/internal/domain/cart"
	"github.com/courseloop/coursepay/internal/domain/course"
	"github.com/courseloop/coursepay/internal/domain/payment"
)

// errorResponse is the JSON envelope for all error responses.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses. Business-rule
// violations surface with their own message; anything unrecognized is logged
// and returned as an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, cart.ErrItemNotInCart),
		errors.Is(err, payment.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, payment.ErrEmptyCart),
		errors.Is(err, cart.ErrUnpublished),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, payment.ErrAlreadyFailed):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, cart.ErrAlreadyInCart),
		errors.Is(err, cart.ErrCartFull),
		errors.Is(err, cart.ErrAlreadyEnrolled),
		// A pending record vanishing mid-checkout means a concurrent
		// settlement won; the client should refetch its cart.
		errors.Is(err, payment.ErrNoPendingRecord):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, payment.ErrGatewayInit):
		writeError(w, http.StatusBadGateway, err.Error())

	default:
		var enrolled *payment.AlreadyEnrolledError
		if errors.As(err, &enrolled) {
			writeError(w, http.StatusConflict, enrolled.Error())
			return
		}
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
