package httpapi

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/catalog"
)

// ProductHandler serves the catalog straight from the in-memory snapshot;
// reads never touch the database on the request path.
type ProductHandler struct {
	snapshots *catalog.Refresher
}

func NewProductHandler(snapshots *catalog.Refresher) *ProductHandler {
	return &ProductHandler{snapshots: snapshots}
}

type ProductDTO struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Price            float64   `json:"price"`
	DiscountPrice    float64   `json:"discount_price,omitempty"`
	StockQuantity    int       `json:"stock_quantity"`
	MinOrderQuantity int       `json:"min_order_quantity"`
	ImageURL         string    `json:"image_url"`
	CreatedAt        time.Time `json:"created_at"`
}

func toProductDTO(p *catalog.Product) ProductDTO {
	return ProductDTO{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		DiscountPrice:    p.DiscountPrice,
		StockQuantity:    p.StockQuantity,
		MinOrderQuantity: p.MinOrderQuantity,
		ImageURL:         p.ImageURL,
		CreatedAt:        p.CreatedAt,
	}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Current()

	out := make([]ProductDTO, 0, snap.Len())
	for _, p := range snap.Products() {
		out = append(out, toProductDTO(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	respondJSON(w, http.StatusOK, out)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	p, ok := h.snapshots.Current().Lookup(id)
	if !ok {
		handleDomainError(w, catalog.ErrProductNotFound)
		return
	}

	respondJSON(w, http.StatusOK, toProductDTO(p))
}
