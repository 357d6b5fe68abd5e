package catalog

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Snapshot is an immutable point-in-time view of the active catalog.
// Cart reconciliation and add-to-cart ceilings are checked against it.
type Snapshot struct {
	products map[int64]*Product
	takenAt  time.Time
}

func NewSnapshot(products []*Product, takenAt time.Time) *Snapshot {
	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	m := make(map[int64]*Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &Snapshot{products: m, takenAt: takenAt}
}

func (s *Snapshot) Lookup(id int64) (*Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

// Ceiling returns the purchasable quantity for a product. Unknown or
// inactive products have a ceiling of zero.
func (s *Snapshot) Ceiling(id int64) int {
	p, ok := s.products[id]
	if !ok || !p.Purchasable() {
		return 0
	}
	return p.StockQuantity
}

// Products returns the snapshot contents in unspecified order.
func (s *Snapshot) Products() []*Product {
	out := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}

func (s *Snapshot) Len() int           { return len(s.products) }
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Refresher periodically rebuilds the snapshot from the catalog repository.
// Reads go through a circuit breaker so a flapping catalog store does not
// hammer the database, and a manual refresh supersedes an in-flight one:
// the stale result is discarded, never installed.
type Refresher struct {
	repo     RepoInterface
	interval time.Duration
	breaker  *gobreaker.CircuitBreaker[[]*Product]

	gen atomic.Uint64

	mu      sync.RWMutex
	current *Snapshot
	subs    []chan *Snapshot
}

func NewRefresher(repo RepoInterface, interval time.Duration) *Refresher {
	cb := gobreaker.NewCircuitBreaker[[]*Product](gobreaker.Settings{
		Name:    "catalog-refresh",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Refresher{
		repo:     repo,
		interval: interval,
		breaker:  cb,
		current:  NewSnapshot(nil, time.Now()),
	}
}

// Current returns the latest installed snapshot. Never nil.
func (r *Refresher) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe returns a channel that receives each newly installed snapshot.
// Delivery is best effort: a slow subscriber misses intermediate snapshots
// rather than blocking the refresh loop.
func (r *Refresher) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				log.Printf("catalog refresh failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Refresh fetches the active catalog and installs a new snapshot. If another
// refresh started after this one, this result is stale and dropped.
func (r *Refresher) Refresh(ctx context.Context) error {
	gen := r.gen.Add(1)

	products, err := r.breaker.Execute(func() ([]*Product, error) {
		return r.repo.GetActiveProducts(ctx)
	})
	if err != nil {
		return err
	}

	if r.gen.Load() != gen {
		log.Printf("catalog refresh superseded, discarding %d products", len(products))
		return nil
	}

	snap := NewSnapshot(products, time.Now())

	r.mu.Lock()
	r.current = snap
	subs := r.subs
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// drain the stale snapshot and replace it with the fresh one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	return nil
}
