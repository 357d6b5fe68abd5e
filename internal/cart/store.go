package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/catalog"
)

// Storage persists the whole cart as a single record. Every successful
// mutation writes through it synchronously before the mutation is committed
// in memory, so a crash never loses a committed change and never observes a
// half-applied one.
type Storage interface {
	Load(ctx context.Context) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Clear(ctx context.Context) error
}

// StockSource supplies the catalog snapshot mutations are validated against.
type StockSource interface {
	Current() *catalog.Snapshot
}

// AddResult reports what an Add actually did. Applied is the quantity that
// made it into the cart, which is less than requested when the stock
// ceiling clamped it.
type AddResult struct {
	Applied int
	Clamped bool
}

// QuantityAdjustment records one line changed by a catalog reconciliation,
// so the UI can surface it instead of the cart changing silently.
type QuantityAdjustment struct {
	ItemID      string
	ProductID   int64
	From        int
	To          int
	Unavailable bool
}

// Store is the single owner of the active cart. All reads and mutations go
// through it; totals always match the lines actually present.
type Store struct {
	mu      sync.Mutex
	cart    Cart
	storage Storage
	stock   StockSource

	observers []func(Cart)
}

func NewStore(storage Storage, stock StockSource) *Store {
	return &Store{storage: storage, stock: stock}
}

// Load reads the persisted cart once at session start. A missing or corrupt
// record is an empty cart, not an error.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSavedCart) {
			return err
		}
		s.cart = Cart{}
		return nil
	}

	s.cart = *saved
	s.cart.recompute()
	return nil
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.clone()
}

// Subscribe registers an observer invoked with a copy of the cart after
// every committed mutation.
func (s *Store) Subscribe(fn func(Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Add merges the candidate into the cart: an existing line with the same id
// gets its quantity incremented, otherwise a new line is appended. The
// resulting quantity is clamped to the product's current stock; when the
// request went over the ceiling the clamped cart is still committed and
// ErrStockExceeded is returned alongside the applied quantity.
func (s *Store) Add(ctx context.Context, candidate CartItem) (AddResult, error) {
	if candidate.Quantity < 1 {
		return AddResult{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.stock.Current()
	product, ok := snap.Lookup(candidate.ProductID)
	if !ok {
		return AddResult{}, catalog.ErrProductNotFound
	}

	ceiling := snap.Ceiling(candidate.ProductID)
	if ceiling == 0 {
		return AddResult{}, fmt.Errorf("product %d: %w", candidate.ProductID, ErrStockExceeded)
	}

	if candidate.ID == "" {
		candidate.ID = strconv.FormatInt(candidate.ProductID, 10)
	}

	next := s.cart.clone()

	var have int
	idx := next.findItem(candidate.ID)
	if idx >= 0 {
		have = next.Items[idx].Quantity
	}

	requested := candidate.Quantity
	if idx < 0 && requested < product.MinOrderQuantity {
		requested = product.MinOrderQuantity
	}

	want := have + requested
	applied := requested
	clamped := false
	if want > ceiling {
		want = ceiling
		applied = ceiling - have
		if applied < 0 {
			// stock shrank below what the cart already holds; the line is
			// left for reconciliation, nothing is added
			want = have
			applied = 0
		}
		clamped = true
	}

	if idx >= 0 {
		next.Items[idx].Quantity = want
		next.Items[idx].MaxQuantity = ceiling
		next.Items[idx].UnitPrice = product.EffectivePrice()
		next.Items[idx].Unavailable = false
	} else {
		next.Items = append(next.Items, CartItem{
			ID:          candidate.ID,
			ProductID:   candidate.ProductID,
			Name:        product.Name,
			UnitPrice:   product.EffectivePrice(),
			ImageURL:    product.ImageURL,
			Quantity:    want,
			MaxQuantity: ceiling,
			AddedAt:     time.Now(),
		})
	}
	next.recompute()

	if applied > 0 {
		if err := s.commit(ctx, next); err != nil {
			return AddResult{}, err
		}
	}

	if clamped {
		return AddResult{Applied: applied, Clamped: true}, ErrStockExceeded
	}
	return AddResult{Applied: applied}, nil
}

// UpdateQuantity sets the quantity of an existing line. Quantities below 1
// are a no-op. A quantity above the current stock ceiling leaves the line
// unchanged and returns ErrStockExceeded.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cart.findItem(id)
	if idx < 0 {
		return ErrItemNotFound
	}

	line := s.cart.Items[idx]
	ceiling := s.stock.Current().Ceiling(line.ProductID)
	if quantity > ceiling {
		return fmt.Errorf("product %d: %w", line.ProductID, ErrStockExceeded)
	}

	next := s.cart.clone()
	next.Items[idx].Quantity = quantity
	next.Items[idx].MaxQuantity = ceiling
	next.recompute()

	return s.commit(ctx, next)
}

// Remove deletes a line. Removing an absent id is a no-op, not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cart.findItem(id)
	if idx < 0 {
		return nil
	}

	next := s.cart.clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	next.recompute()

	return s.commit(ctx, next)
}

// Clear empties the cart, used on successful checkout or explicit request.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Clear(ctx); err != nil {
		return err
	}

	s.cart = Cart{}
	s.notify()
	return nil
}

// Reconcile refreshes every line's stock ceiling from the snapshot and
// clamps quantities that now exceed it. A line whose product disappeared or
// ran out is flagged un-purchasable, not removed. Each changed line is
// reported so the UI can tell the user.
//
// Reconcile serializes on the same mutex as user mutations, so an
// adjustment never lands in the middle of one; a reconcile requested while
// a mutation is in flight simply runs after it.
func (s *Store) Reconcile(ctx context.Context, snap *catalog.Snapshot) ([]QuantityAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cart.clone()
	var adjustments []QuantityAdjustment
	changed := false

	for i := range next.Items {
		line := &next.Items[i]
		ceiling := snap.Ceiling(line.ProductID)

		if ceiling == 0 {
			if !line.Unavailable {
				adjustments = append(adjustments, QuantityAdjustment{
					ItemID:      line.ID,
					ProductID:   line.ProductID,
					From:        line.Quantity,
					To:          line.Quantity,
					Unavailable: true,
				})
			}
			if line.MaxQuantity != 0 || !line.Unavailable {
				changed = true
			}
			line.MaxQuantity = 0
			line.Unavailable = true
			continue
		}

		if line.MaxQuantity != ceiling || line.Unavailable {
			changed = true
		}
		line.MaxQuantity = ceiling
		line.Unavailable = false
		if line.Quantity > ceiling {
			adjustments = append(adjustments, QuantityAdjustment{
				ItemID:    line.ID,
				ProductID: line.ProductID,
				From:      line.Quantity,
				To:        ceiling,
			})
			line.Quantity = ceiling
		}
	}

	if !changed {
		return nil, nil
	}

	next.recompute()
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// commit persists the prepared cart and only then makes it the live one.
// Callers hold the mutex.
func (s *Store) commit(ctx context.Context, next Cart) error {
	if err := s.storage.Save(ctx, &next); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	s.cart = next
	s.notify()
	return nil
}

func (s *Store) notify() {
	snapshot := s.cart.clone()
	for _, fn := range s.observers {
		fn(snapshot)
	}
}
