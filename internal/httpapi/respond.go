package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/catalog"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/checkout"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/promo"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/tracking"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError maps the core's signals to HTTP statuses with
// actionable messages. Stock and promo signals are user-facing and
// recoverable, never generic failures.
func handleDomainError(w http.ResponseWriter, err error) {
	var validation *tracking.ValidationError

	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		respondError(w, http.StatusConflict, "stock_exceeded", "requested quantity exceeds available stock")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", "no such item in the cart")
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, promo.ErrInvalidPromo):
		respondError(w, http.StatusUnprocessableEntity, "invalid_promo", "this promo code cannot be applied to the current cart")
	case errors.Is(err, promo.ErrPromoNotFound):
		respondError(w, http.StatusNotFound, "promo_not_found", "unknown promo code")
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "the cart is empty")
	case errors.Is(err, checkout.ErrUnavailableItems):
		respondError(w, http.StatusConflict, "unavailable_items", "some items in the cart are no longer available")
	case errors.Is(err, checkout.ErrInvalidEmail):
		respondError(w, http.StatusBadRequest, "invalid_email", "the email address is not valid")
	case errors.Is(err, tracking.ErrNotFound):
		respondError(w, http.StatusNotFound, "tracking_not_found", "no order matches that tracking code; try looking up by email")
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "validation_error", validation.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
