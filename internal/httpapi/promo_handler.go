package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/promo"
)

type PromoHandler struct {
	promos     promo.Repository
	carts      *cart.Manager
	selections *SelectionStore
	timeout    time.Duration
}

func NewPromoHandler(promos promo.Repository, carts *cart.Manager, selections *SelectionStore, timeout time.Duration) *PromoHandler {
	return &PromoHandler{promos: promos, carts: carts, selections: selections, timeout: timeout}
}

type PromoDTO struct {
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	Discount      float64 `json:"discount"`
	EndDate       string  `json:"end_date"`
}

type ApplyPromoRequestDTO struct {
	Code string `json:"code"`
}

type ApplyPromoResponseDTO struct {
	Code     string  `json:"code,omitempty"`
	Discount float64 `json:"discount"`
	Payable  float64 `json:"payable"`
}

// ListApplicable returns the promos the current cart qualifies for,
// featured first then newest, each with the discount it would give.
func (h *PromoHandler) ListApplicable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionKey := getSessionKey(r.Context())
	store, err := h.carts.Store(ctx, sessionKey)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	total := store.Cart().Total

	now := time.Now()
	active, err := h.promos.GetActive(ctx, now)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	out := []PromoDTO{}
	for p := range promo.ListApplicable(active, total, now) {
		out = append(out, PromoDTO{
			Code:          p.Code,
			DiscountType:  string(p.DiscountType),
			DiscountValue: p.DiscountValue,
			Discount:      promo.ComputeDiscount(p, total),
			EndDate:       p.EndDate.Format("2006-01-02"),
		})
	}

	respondJSON(w, http.StatusOK, out)
}

// Apply attaches a promo code to the session's checkout, replacing any
// previous one. An empty code clears the selection. A code that stopped
// being applicable is rejected here, not at submission.
func (h *PromoHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyPromoRequestDTO
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
	total := store.Cart().Total
	selection := h.selections.Get(sessionKey)
	now := time.Now()

	if req.Code == "" {
		selection.Select(nil, total, now)
		respondJSON(w, http.StatusOK, ApplyPromoResponseDTO{Payable: total})
		return
	}

	p, err := h.promos.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, promo.ErrPromoNotFound) {
			handleDomainError(w, promo.ErrInvalidPromo)
			return
		}
		handleDomainError(w, err)
		return
	}

	if err := selection.Select(p, total, now); err != nil {
		handleDomainError(w, err)
		return
	}

	discount := promo.ComputeDiscount(*p, total)
	payable := total - discount
	if payable < 0 {
		payable = 0
	}

	respondJSON(w, http.StatusOK, ApplyPromoResponseDTO{
		Code:     p.Code,
		Discount: discount,
		Payable:  payable,
	})
}
