package cart

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SessionService combines the durable cart repository with the read cache.
// Reads go cache-first with singleflight so concurrent misses for the same
// session hit MongoDB once; writes go to the repository and invalidate the
// cache.
type SessionService struct {
	repo  SessionRepository
	cache SessionCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewSessionService(repo SessionRepository, cache SessionCache) *SessionService {
	return &SessionService{
		repo:  repo,
		cache: cache,
	}
}

func (s *SessionService) GetCart(ctx context.Context, sessionKey string) (*Cart, error) {
	v, err, _ := s.sfg.Do(sessionKey, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, sessionKey)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, sessionKey)
		if errGet != nil && errors.Is(errGet, ErrNoSavedCart) {
			return &Cart{}, nil // absent record means empty cart
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), sessionKey, cart)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Cart), nil
}

func (s *SessionService) SaveCart(ctx context.Context, sessionKey string, cart *Cart) error {
	if err := s.repo.UpsertCart(ctx, sessionKey, cart); err != nil {
		return err
	}

	s.invalidate(sessionKey)
	return nil
}

func (s *SessionService) ClearCart(ctx context.Context, sessionKey string) error {
	if err := s.repo.DeleteCart(ctx, sessionKey); err != nil {
		return err
	}

	s.invalidate(sessionKey)
	return nil
}

func (s *SessionService) invalidate(sessionKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionKey); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

// Storage binds the service to one session key, satisfying the Store's
// Storage interface.
func (s *SessionService) Storage(sessionKey string) Storage {
	return &sessionStorage{svc: s, key: sessionKey}
}

type sessionStorage struct {
	svc *SessionService
	key string
}

func (b *sessionStorage) Load(ctx context.Context) (*Cart, error) {
	cart, err := b.svc.GetCart(ctx, b.key)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrNoSavedCart
	}
	return cart, nil
}

func (b *sessionStorage) Save(ctx context.Context, cart *Cart) error {
	return b.svc.SaveCart(ctx, b.key, cart)
}

func (b *sessionStorage) Clear(ctx context.Context) error {
	return b.svc.ClearCart(ctx, b.key)
}

// Manager owns one Store per active session. UI surfaces never touch cart
// state directly, they go through the store the manager hands out.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store

	svc   *SessionService
	stock StockSource
}

func NewManager(svc *SessionService, stock StockSource) *Manager {
	return &Manager{
		stores: make(map[string]*Store),
		svc:    svc,
		stock:  stock,
	}
}

// Store returns the session's cart store, loading the persisted cart the
// first time the session shows up.
func (m *Manager) Store(ctx context.Context, sessionKey string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[sessionKey]; ok {
		return store, nil
	}

	store := NewStore(m.svc.Storage(sessionKey), m.stock)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	m.stores[sessionKey] = store
	return store, nil
}

// ReconcileAll pushes a fresh catalog snapshot through every live store.
func (m *Manager) ReconcileAll(ctx context.Context) {
	m.mu.Lock()
	stores := make([]*Store, 0, len(m.stores))
	for _, store := range m.stores {
		stores = append(stores, store)
	}
	m.mu.Unlock()

	snap := m.stock.Current()
	for _, store := range stores {
		adjustments, err := store.Reconcile(ctx, snap)
		if err != nil {
			log.Printf("cart reconcile failed: %v", err)
			continue
		}
		for _, adj := range adjustments {
			if adj.Unavailable {
				log.Printf("cart line %s: product %d no longer available", adj.ItemID, adj.ProductID)
			} else {
				log.Printf("cart line %s: quantity adjusted %d -> %d", adj.ItemID, adj.From, adj.To)
			}
		}
	}
}
