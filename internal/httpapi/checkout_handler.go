package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/checkout"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/order"
)

// OrderPlacer is the slice of the checkout service this handler uses.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, h checkout.Handoff, email string) (*order.Order, error)
}

type CheckoutHandler struct {
	service    OrderPlacer
	carts      *cart.Manager
	selections *SelectionStore
	shipping   float64
	timeout    time.Duration
}

func NewCheckoutHandler(service OrderPlacer, carts *cart.Manager, selections *SelectionStore, shippingCost float64, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		service:    service,
		carts:      carts,
		selections: selections,
		shipping:   shippingCost,
		timeout:    timeout,
	}
}

type CheckoutRequestDTO struct {
	Email string `json:"email"`
}

type CheckoutResponseDTO struct {
	OrderID     string  `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	TrackingPin string  `json:"tracking_pin"`
	Total       float64 `json:"total"`
}

// PlaceOrder hands the cart and the applied promo to order creation and,
// on success, destroys the cart session state.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sessionKey := getSessionKey(r.Context())
	store, err := h.carts.Store(ctx, sessionKey)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	selection := h.selections.Get(sessionKey)
	handoff := checkout.BuildHandoff(store.Cart(), selection.Current(), h.shipping)

	placed, err := h.service.PlaceOrder(ctx, handoff, req.Email)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := store.Clear(ctx); err != nil {
		// The order exists; a cart that failed to clear is an annoyance,
		// not a reason to fail the checkout.
		log.Printf("failed to clear cart after checkout %s: %v", placed.ID, err)
	}
	selection.Select(nil, 0, time.Now())

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		OrderID:     placed.ID.String(),
		OrderNumber: placed.OrderNumber,
		TrackingPin: placed.TrackingPin,
		Total:       placed.Total,
	})
}
