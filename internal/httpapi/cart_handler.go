package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/promo"
)

// SelectionStore keeps the per-session promo selection alongside the cart.
type SelectionStore struct {
	mu sync.Mutex
	m  map[string]*promo.Selection
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{m: make(map[string]*promo.Selection)}
}

func (s *SelectionStore) Get(sessionKey string) *promo.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.m[sessionKey]
	if !ok {
		sel = &promo.Selection{}
		s.m[sessionKey] = sel
	}
	return sel
}

type CartHandler struct {
	carts      *cart.Manager
	selections *SelectionStore
	timeout    time.Duration
}

func NewCartHandler(carts *cart.Manager, selections *SelectionStore, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, selections: selections, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// CartResponseDTO is the cart plus whatever the last operation needs to
// surface: a clamped add, a dropped promo.
type CartResponseDTO struct {
	Cart         cart.Cart `json:"cart"`
	Applied      int       `json:"applied,omitempty"`
	Clamped      bool      `json:"clamped,omitempty"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
	DroppedPromo string    `json:"dropped_promo,omitempty"`
}

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, string, bool) {
	sessionKey := getSessionKey(r.Context())
	if sessionKey == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing cart session")
		return nil, "", false
	}
	store, err := h.carts.Store(r.Context(), sessionKey)
	if err != nil {
		handleDomainError(w, err)
		return nil, "", false
	}
	return store, sessionKey, true
}

// revalidatePromo drops a selected promo that the cart mutation made
// inapplicable, reporting the dropped code so the UI can say why.
func (h *CartHandler) revalidatePromo(sessionKey string, c cart.Cart) string {
	dropped := h.selections.Get(sessionKey).Revalidate(c.Total, time.Now())
	if dropped == nil {
		return ""
	}
	return dropped.Code
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.store(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: store.Cart()})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	store, sessionKey, ok := h.store(w, r)
	if !ok {
		return
	}

	result, err := store.Add(ctx, cart.CartItem{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil && !errors.Is(err, cart.ErrStockExceeded) {
		handleDomainError(w, err)
		return
	}

	resp := CartResponseDTO{
		Cart:         store.Cart(),
		Applied:      result.Applied,
		Clamped:      result.Clamped,
		DroppedPromo: h.revalidatePromo(sessionKey, store.Cart()),
	}
	if errors.Is(err, cart.ErrStockExceeded) {
		resp.Code = "stock_exceeded"
		resp.Message = "requested quantity exceeds available stock; the cart holds the maximum"
		respondJSON(w, http.StatusConflict, resp)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	store, sessionKey, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := store.UpdateQuantity(ctx, itemID, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{
		Cart:         store.Cart(),
		DroppedPromo: h.revalidatePromo(sessionKey, store.Cart()),
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return
	}

	store, sessionKey, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := store.Remove(ctx, itemID); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{
		Cart:         store.Cart(),
		DroppedPromo: h.revalidatePromo(sessionKey, store.Cart()),
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, sessionKey, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := store.Clear(ctx); err != nil {
		handleDomainError(w, err)
		return
	}
	h.selections.Get(sessionKey).Select(nil, 0, time.Now())

	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: store.Cart()})
}
