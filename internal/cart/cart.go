package cart

import (
	"errors"
	"time"
)

var (
	// ErrStockExceeded signals that a requested quantity went over the
	// product's stock ceiling. The operation clamps to the ceiling and the
	// caller is told, it is never silently rounded down.
	ErrStockExceeded = errors.New("requested quantity exceeds available stock")

	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNoSavedCart     = errors.New("no saved cart")
)

// CartItem is one line of the active cart. MaxQuantity mirrors the
// product's live stock and is refreshed from the catalog snapshot before
// every mutating operation.
type CartItem struct {
	ID          string    `bson:"id" json:"id"`
	ProductID   int64     `bson:"product_id" json:"product_id"`
	Name        string    `bson:"name" json:"name"`
	UnitPrice   float64   `bson:"unit_price" json:"unit_price"`
	ImageURL    string    `bson:"image_url" json:"image_url"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	MaxQuantity int       `bson:"max_quantity" json:"max_quantity"`
	Unavailable bool      `bson:"unavailable" json:"unavailable"`
	AddedAt     time.Time `bson:"added_at" json:"added_at"`
}

func (i CartItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Cart holds the ordered line items plus the derived Count and Total.
// Count and Total are never written directly, recompute owns them.
type Cart struct {
	Items []CartItem `bson:"items" json:"items"`
	Count int        `bson:"count" json:"count"`
	Total float64    `bson:"total" json:"total"`
}

func (c *Cart) recompute() {
	count := 0
	total := 0.0
	for _, item := range c.Items {
		count += item.Quantity
		total += item.Subtotal()
	}
	c.Count = count
	c.Total = total
}

func (c *Cart) findItem(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// clone returns a deep copy so a mutation can be prepared, persisted and
// only then committed to the live cart.
func (c *Cart) clone() Cart {
	out := Cart{Count: c.Count, Total: c.Total}
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

// HasUnavailable reports whether any line was flagged un-purchasable by a
// catalog reconciliation. Checkout refuses carts with such lines.
func (c *Cart) HasUnavailable() bool {
	for _, item := range c.Items {
		if item.Unavailable {
			return true
		}
	}
	return false
}
