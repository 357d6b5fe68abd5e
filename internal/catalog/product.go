package catalog

import "time"

// ProductStatus represents the publication state of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusArchived ProductStatus = "archived"
)

type Product struct {
	ID               int64
	Name             string
	Description      string
	Price            float64
	DiscountPrice    float64
	StockQuantity    int
	MinOrderQuantity int
	Status           ProductStatus
	ImageURL         string
	CreatedAt        time.Time
}

// EffectivePrice returns the discount price when one is set below the
// regular price, otherwise the regular price.
func (p Product) EffectivePrice() float64 {
	if p.DiscountPrice > 0 && p.DiscountPrice < p.Price {
		return p.DiscountPrice
	}
	return p.Price
}

// Purchasable reports whether the product can be added to a cart at all.
func (p Product) Purchasable() bool {
	return p.Status == ProductStatusActive && p.StockQuantity > 0
}
