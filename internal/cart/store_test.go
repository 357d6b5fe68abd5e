package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/catalog"
)

type mockStorage struct {
	m       sync.Mutex
	cart    *Cart
	saveErr error
	saves   int
}

func (m *mockStorage) Load(context.Context) (*Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.cart == nil {
		return nil, ErrNoSavedCart
	}
	c := m.cart.clone()
	return &c, nil
}

func (m *mockStorage) Save(_ context.Context, cart *Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := cart.clone()
	m.cart = &c
	m.saves++
	return nil
}

func (m *mockStorage) Clear(context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return nil
}

func (m *mockStorage) saved() *Cart {
	m.m.Lock()
	defer m.m.Unlock()
	return m.cart
}

type fixedStock struct {
	snap *catalog.Snapshot
}

func (f *fixedStock) Current() *catalog.Snapshot { return f.snap }

func snapshotOf(products ...*catalog.Product) *fixedStock {
	return &fixedStock{snap: catalog.NewSnapshot(products, time.Now())}
}

func activeProduct(id int64, price float64, stock int) *catalog.Product {
	return &catalog.Product{
		ID:               id,
		Name:             fmt.Sprintf("Product %d", id),
		Price:            price,
		StockQuantity:    stock,
		MinOrderQuantity: 1,
		Status:           catalog.ProductStatusActive,
	}
}

func TestAdd_NewItem(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 10.50, 20)))

	res, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.False(t, res.Clamped)

	got := sut.Cart()
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, 10.50, got.Items[0].UnitPrice)
	assert.Equal(t, 20, got.Items[0].MaxQuantity)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 31.50, got.Total)
}

func TestAdd_MergesExistingLine(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 5.00, 20)))

	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	_, err = sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 3})
	require.NoError(t, err)

	got := sut.Cart()
	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].Quantity)
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, 25.00, got.Total)
}

func TestAdd_ClampsToStockCeiling(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 2.00, 3)))

	res, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 5})
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 3, res.Applied)
	assert.True(t, res.Clamped)

	// The clamped cart is committed, not discarded.
	got := sut.Cart()
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	require.NotNil(t, storage.saved())
	assert.Equal(t, 3, storage.saved().Items[0].Quantity)
}

func TestAdd_AtCeilingAppliesNothing(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 2.00, 3)))

	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	saves := storage.saves

	res, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 0, res.Applied)
	assert.True(t, res.Clamped)
	assert.Equal(t, saves, storage.saves, "nothing applied, nothing persisted")
}

func TestAdd_RaisesToMinOrderQuantity(t *testing.T) {
	p := activeProduct(1, 1.00, 50)
	p.MinOrderQuantity = 5
	sut := NewStore(&mockStorage{}, snapshotOf(p))

	res, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Applied)
	assert.Equal(t, 5, sut.Cart().Items[0].Quantity)
}

func TestAdd_UnknownProduct(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf())

	_, err := sut.Add(context.Background(), CartItem{ProductID: 99, Quantity: 1})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestAdd_OutOfStockProduct(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 2.00, 0)))

	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Empty(t, sut.Cart().Items)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 2.00, 10)))

	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: -2})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAdd_SaveFailureLeavesCartUntouched(t *testing.T) {
	storage := &mockStorage{saveErr: fmt.Errorf("mongo down")}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 2.00, 10)))

	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 2})
	require.ErrorContains(t, err, "mongo down")
	assert.Empty(t, sut.Cart().Items, "failed persist must not commit in memory")
}

func TestUpdateQuantity_Success(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 4.00, 10)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, sut.UpdateQuantity(context.Background(), "line-1", 7))
	got := sut.Cart()
	assert.Equal(t, 7, got.Items[0].Quantity)
	assert.Equal(t, 28.00, got.Total)
}

func TestUpdateQuantity_BelowOneIsNoOp(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 4.00, 10)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, sut.UpdateQuantity(context.Background(), "line-1", 0))
	assert.Equal(t, 2, sut.Cart().Items[0].Quantity)
}

func TestUpdateQuantity_OverCeilingLeavesLineUnchanged(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 4.00, 5)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	err = sut.UpdateQuantity(context.Background(), "line-1", 9)
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 2, sut.Cart().Items[0].Quantity)
}

func TestUpdateQuantity_UnknownItem(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 4.00, 5)))

	err := sut.UpdateQuantity(context.Background(), "nope", 2)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemove_Idempotent(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 4.00, 5)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, sut.Remove(context.Background(), "line-1"))
	assert.Empty(t, sut.Cart().Items)
	assert.Equal(t, 0, sut.Cart().Count)

	// Second remove of the same id is a no-op, not an error.
	require.NoError(t, sut.Remove(context.Background(), "line-1"))
}

func TestClear(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 4.00, 5), activeProduct(2, 1.00, 5)))
	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	_, err = sut.Add(context.Background(), CartItem{ProductID: 2, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, sut.Clear(context.Background()))
	got := sut.Cart()
	assert.Empty(t, got.Items)
	assert.Equal(t, 0, got.Count)
	assert.Equal(t, 0.0, got.Total)
	assert.Nil(t, storage.saved())
}

func TestLoad_MissingRecordIsEmptyCart(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf())

	require.NoError(t, sut.Load(context.Background()))
	assert.Empty(t, sut.Cart().Items)
}

func TestLoad_RecomputesTotals(t *testing.T) {
	// A tampered record with wrong derived fields is fixed on load.
	storage := &mockStorage{cart: &Cart{
		Items: []CartItem{{ID: "1", ProductID: 1, UnitPrice: 3.00, Quantity: 2}},
		Count: 99,
		Total: 1234.0,
	}}
	sut := NewStore(storage, snapshotOf())

	require.NoError(t, sut.Load(context.Background()))
	got := sut.Cart()
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 6.00, got.Total)
}

func TestReconcile_ClampsOverstockedLines(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 2.00, 10)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 8})
	require.NoError(t, err)

	// Stock dropped from 10 to 3.
	shrunk := catalog.NewSnapshot([]*catalog.Product{activeProduct(1, 2.00, 3)}, time.Now())
	adjustments, err := sut.Reconcile(context.Background(), shrunk)
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, "line-1", adjustments[0].ItemID)
	assert.Equal(t, 8, adjustments[0].From)
	assert.Equal(t, 3, adjustments[0].To)
	assert.False(t, adjustments[0].Unavailable)

	got := sut.Cart()
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, 3, got.Items[0].MaxQuantity)
	assert.Equal(t, 6.00, got.Total)
}

func TestReconcile_FlagsVanishedProductUnavailable(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 2.00, 10)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 4})
	require.NoError(t, err)

	empty := catalog.NewSnapshot(nil, time.Now())
	adjustments, err := sut.Reconcile(context.Background(), empty)
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.True(t, adjustments[0].Unavailable)

	got := sut.Cart()
	require.Len(t, got.Items, 1, "unavailable line is kept, not removed")
	assert.True(t, got.Items[0].Unavailable)
	assert.Equal(t, 0, got.Items[0].MaxQuantity)
	assert.True(t, got.HasUnavailable())
}

func TestReconcile_RestoredProductClearsFlag(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 2.00, 10)))
	_, err := sut.Add(context.Background(), CartItem{ID: "line-1", ProductID: 1, Quantity: 4})
	require.NoError(t, err)

	empty := catalog.NewSnapshot(nil, time.Now())
	_, err = sut.Reconcile(context.Background(), empty)
	require.NoError(t, err)

	restored := catalog.NewSnapshot([]*catalog.Product{activeProduct(1, 2.00, 10)}, time.Now())
	adjustments, err := sut.Reconcile(context.Background(), restored)
	require.NoError(t, err)
	assert.Empty(t, adjustments, "quantity unchanged, only the flag flips")

	got := sut.Cart()
	assert.False(t, got.Items[0].Unavailable)
	assert.Equal(t, 10, got.Items[0].MaxQuantity)
}

func TestReconcile_NoChangesNoPersist(t *testing.T) {
	storage := &mockStorage{}
	sut := NewStore(storage, snapshotOf(activeProduct(1, 2.00, 10)))
	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 4})
	require.NoError(t, err)
	saves := storage.saves

	same := catalog.NewSnapshot([]*catalog.Product{activeProduct(1, 2.00, 10)}, time.Now())
	adjustments, err := sut.Reconcile(context.Background(), same)
	require.NoError(t, err)
	assert.Empty(t, adjustments)
	assert.Equal(t, saves, storage.saves)
}

func TestSubscribe_ObserverSeesCommittedCart(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 2.00, 10)))

	var seen []int
	sut.Subscribe(func(c Cart) { seen = append(seen, c.Count) })

	_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	_, err = sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, seen)
}

func TestConcurrentMutations_TotalsStayConsistent(t *testing.T) {
	sut := NewStore(&mockStorage{}, snapshotOf(activeProduct(1, 1.00, 1000)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := sut.Add(context.Background(), CartItem{ProductID: 1, Quantity: 1})
				if err != nil && !errors.Is(err, ErrStockExceeded) {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got := sut.Cart()
	require.Len(t, got.Items, 1)
	assert.Equal(t, 100, got.Items[0].Quantity)
	assert.Equal(t, 100, got.Count)
	assert.Equal(t, 100.0, got.Total)
}
