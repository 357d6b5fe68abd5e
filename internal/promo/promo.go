package promo

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidPromo signals a code that fails the applicability check at
// selection or re-validation time: outside its window, quota exhausted, or
// below the order minimum.
var ErrInvalidPromo = errors.New("promo code is not applicable")

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Promo struct {
	Code          string       `bson:"code" json:"code"`
	DiscountType  DiscountType `bson:"discount_type" json:"discount_type"`
	DiscountValue float64      `bson:"discount_value" json:"discount_value"`
	MinOrderValue *float64     `bson:"min_order_value,omitempty" json:"min_order_value,omitempty"`
	StartDate     time.Time    `bson:"start_date" json:"start_date"`
	EndDate       time.Time    `bson:"end_date" json:"end_date"`
	MaxUses       *int         `bson:"max_uses,omitempty" json:"max_uses,omitempty"`
	CurrentUses   int          `bson:"current_uses" json:"current_uses"`
	Featured      bool         `bson:"featured" json:"featured"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
}

// Matches compares codes case-insensitively.
func (p Promo) Matches(code string) bool {
	return strings.EqualFold(p.Code, strings.TrimSpace(code))
}

// Applicable reports whether the promo can be attached to a cart with the
// given total at the given instant. The end date is inclusive through the
// end of its calendar day: a promo ending 2025-01-10 is still valid at
// 2025-01-10T23:59:59 and invalid from 2025-01-11T00:00:00.
func (p Promo) Applicable(cartTotal float64, now time.Time) bool {
	if now.Before(p.StartDate) {
		return false
	}
	if !now.Before(endOfDay(p.EndDate)) {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	if p.MinOrderValue != nil && cartTotal < *p.MinOrderValue {
		return false
	}
	return true
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
