package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/tracking"
)

type lookupToken struct {
	cancel context.CancelFunc
}

type TrackingHandler struct {
	resolver *tracking.Resolver
	timeout  time.Duration

	mu       sync.Mutex
	inflight map[string]*lookupToken
}

func NewTrackingHandler(resolver *tracking.Resolver, timeout time.Duration) *TrackingHandler {
	return &TrackingHandler{
		resolver: resolver,
		timeout:  timeout,
		inflight: make(map[string]*lookupToken),
	}
}

// begin cancels the session's previous in-flight lookup: a newer lookup
// supersedes an older one, and the stale response is discarded with its
// context instead of being applied.
func (h *TrackingHandler) begin(parent context.Context, sessionKey string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	tok := &lookupToken{cancel: cancel}

	h.mu.Lock()
	if prev, ok := h.inflight[sessionKey]; ok {
		prev.cancel()
	}
	h.inflight[sessionKey] = tok
	h.mu.Unlock()

	return ctx, func() {
		h.mu.Lock()
		if h.inflight[sessionKey] == tok {
			delete(h.inflight, sessionKey)
		}
		h.mu.Unlock()
		cancel()
	}
}

type TrackingDTO struct {
	OrderNumber   string     `json:"order_number"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	Step          int        `json:"step"`
	Total         float64    `json:"total"`
	CreatedAt     time.Time  `json:"created_at"`
	ShippedAt     *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

func toTrackingDTO(p *tracking.Progress) TrackingDTO {
	o := p.Order
	return TrackingDTO{
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Step:          p.Step,
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
	}
}

func (h *TrackingHandler) ByPin(w http.ResponseWriter, r *http.Request) {
	sessionKey := getSessionKey(r.Context())
	ctx, done := h.begin(r.Context(), sessionKey)
	defer done()

	progress, err := h.resolver.ByTrackingCode(ctx, chi.URLParam(r, "pin"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toTrackingDTO(progress))
}

func (h *TrackingHandler) ByEmail(w http.ResponseWriter, r *http.Request) {
	sessionKey := getSessionKey(r.Context())
	ctx, done := h.begin(r.Context(), sessionKey)
	defer done()

	email := r.URL.Query().Get("email")
	results, err := h.resolver.ByEmail(ctx, email)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	out := make([]TrackingDTO, len(results))
	for i, p := range results {
		out[i] = toTrackingDTO(p)
	}
	respondJSON(w, http.StatusOK, out)
}
