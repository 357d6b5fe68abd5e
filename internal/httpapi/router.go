package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Cart     *CartHandler
	Promo    *PromoHandler
	Checkout *CheckoutHandler
	Tracking *TrackingHandler
	Product  *ProductHandler
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Product.List)
			r.Get("/{product_id}", cfg.Product.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{item_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{item_id}", cfg.Cart.RemoveItem)
			r.Post("/promo", cfg.Promo.Apply)
		})

		r.Get("/promos", cfg.Promo.ListApplicable)
		r.Post("/checkout", cfg.Checkout.PlaceOrder)

		r.Route("/track", func(r chi.Router) {
			r.Get("/", cfg.Tracking.ByEmail)
			r.Get("/{pin}", cfg.Tracking.ByPin)
		})
	})

	return r
}
