package promo

import (
	"iter"
	"sort"
	"sync"
	"time"
)

// ListApplicable yields the promos applicable to the given cart total at
// the given instant, featured first, then newest first. The sequence is
// lazy and can be ranged over more than once.
func ListApplicable(promos []Promo, cartTotal float64, now time.Time) iter.Seq[Promo] {
	ordered := make([]Promo, len(promos))
	copy(ordered, promos)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Featured != ordered[j].Featured {
			return ordered[i].Featured
		}
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	return func(yield func(Promo) bool) {
		for _, p := range ordered {
			if !p.Applicable(cartTotal, now) {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// ComputeDiscount returns the discount amount for a promo against a cart
// total. Pure and deterministic. A fixed discount may exceed the total;
// clamping the payable amount at zero is the caller's job.
func ComputeDiscount(p Promo, cartTotal float64) float64 {
	switch p.DiscountType {
	case DiscountPercentage:
		return cartTotal * p.DiscountValue / 100
	case DiscountFixed:
		return p.DiscountValue
	default:
		return 0
	}
}

// Selection holds the single promo attached to a checkout. Selecting a new
// one replaces the old; promos are never summed.
type Selection struct {
	mu      sync.Mutex
	current *Promo
}

// Select attaches the promo after re-validating it against the current cart
// total. A promo whose quota or window changed since it was listed is
// rejected with ErrInvalidPromo here, not discovered at submission time.
// A nil promo clears the selection.
func (s *Selection) Select(p *Promo, cartTotal float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p == nil {
		s.current = nil
		return nil
	}

	if !p.Applicable(cartTotal, now) {
		return ErrInvalidPromo
	}

	chosen := *p
	s.current = &chosen
	return nil
}

// Current returns the attached promo, or nil when none is selected.
func (s *Selection) Current() *Promo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	chosen := *s.current
	return &chosen
}

// Revalidate drops the attached promo if it no longer applies to the given
// total, returning the dropped promo so the caller can surface it.
func (s *Selection) Revalidate(cartTotal float64, now time.Time) *Promo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Applicable(cartTotal, now) {
		return nil
	}
	dropped := s.current
	s.current = nil
	return dropped
}
