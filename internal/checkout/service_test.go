package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/order"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/promo"
)

type mockRepo struct {
	m             sync.Mutex
	created       []*order.Order
	pinCollisions int
	numCollisions int
	err           error
}

func (m *mockRepo) CreateOrder(_ context.Context, o *order.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.pinCollisions > 0 {
		m.pinCollisions--
		return order.ErrPinCollision
	}
	if m.numCollisions > 0 {
		m.numCollisions--
		return order.ErrDuplicateOrderNum
	}
	cp := *o
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockRepo) GetOrderByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range m.created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *mockRepo) GetOrderByTrackingPin(context.Context, string) (*order.Order, error) {
	return nil, order.ErrOrderNotFound
}

func (m *mockRepo) ListOrdersByEmail(context.Context, string) ([]*order.Order, error) {
	return nil, nil
}

func (m *mockRepo) ListOpenOrders(context.Context) ([]*order.Order, error) {
	return nil, nil
}

func (m *mockRepo) UpdateStatus(context.Context, uuid.UUID, order.Status, time.Time) error {
	return nil
}

func (m *mockRepo) UpdatePaymentStatus(context.Context, uuid.UUID, order.PaymentStatus, time.Time) error {
	return nil
}

func (m *mockRepo) Close() error { return nil }

type mockWriter struct {
	m        sync.Mutex
	messages []kafka.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func newTestService(repo *mockRepo, writer *mockWriter) (*Service, *order.Machine) {
	machine := order.NewMachine()
	return &Service{repo: repo, machine: machine, writer: writer}, machine
}

func testHandoff() Handoff {
	return Handoff{
		Items: []cart.CartItem{
			{ID: "1", ProductID: 1, Name: "Widget", Quantity: 2, UnitPrice: 10.00},
		},
		Subtotal:     20.00,
		ShippingCost: 5.00,
		Total:        25.00,
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	repo := &mockRepo{}
	writer := &mockWriter{}
	sut, machine := newTestService(repo, writer)

	o, err := sut.PlaceOrder(context.Background(), testHandoff(), "jordan@example.com")
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "jordan@example.com", o.CustomerEmail)
	assert.Len(t, o.TrackingPin, 6)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, o.OrderNumber)
	assert.Equal(t, 25.00, o.Total)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(1), o.Items[0].ProductID)

	require.Len(t, repo.created, 1)
	assert.True(t, machine.Tracking(o.ID), "new order must be projected immediately")

	require.Len(t, writer.messages, 1)
	assert.Equal(t, o.ID.String(), string(writer.messages[0].Key))
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &payload))
	assert.Equal(t, o.OrderNumber, payload["order_number"])
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	sut, _ := newTestService(&mockRepo{}, &mockWriter{})

	_, err := sut.PlaceOrder(context.Background(), Handoff{}, "jordan@example.com")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_UnavailableLineRejected(t *testing.T) {
	h := testHandoff()
	h.Items = append(h.Items, cart.CartItem{ID: "2", ProductID: 2, Quantity: 1, Unavailable: true})

	sut, _ := newTestService(&mockRepo{}, &mockWriter{})
	_, err := sut.PlaceOrder(context.Background(), h, "jordan@example.com")
	require.ErrorIs(t, err, ErrUnavailableItems)
}

func TestPlaceOrder_InvalidEmail(t *testing.T) {
	sut, _ := newTestService(&mockRepo{}, &mockWriter{})

	for _, email := range []string{"", "not-an-email", "a@"} {
		_, err := sut.PlaceOrder(context.Background(), testHandoff(), email)
		require.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
	}
}

func TestPlaceOrder_PinCollisionRegenerates(t *testing.T) {
	repo := &mockRepo{pinCollisions: 2}
	sut, _ := newTestService(repo, &mockWriter{})

	o, err := sut.PlaceOrder(context.Background(), testHandoff(), "jordan@example.com")
	require.NoError(t, err)
	assert.Len(t, o.TrackingPin, 6)
	require.Len(t, repo.created, 1)
}

func TestPlaceOrder_PinNamespaceExhausted(t *testing.T) {
	repo := &mockRepo{pinCollisions: pinAttempts}
	sut, _ := newTestService(repo, &mockWriter{})

	_, err := sut.PlaceOrder(context.Background(), testHandoff(), "jordan@example.com")
	require.ErrorIs(t, err, order.ErrPinCollision)
	assert.Empty(t, repo.created)
}

func TestPlaceOrder_DuplicateOrderNumberRegenerates(t *testing.T) {
	repo := &mockRepo{numCollisions: 1}
	sut, _ := newTestService(repo, &mockWriter{})

	o, err := sut.PlaceOrder(context.Background(), testHandoff(), "jordan@example.com")
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, o.OrderNumber)
}

func TestPlaceOrder_RepoError(t *testing.T) {
	repo := &mockRepo{err: fmt.Errorf("database error")}
	sut, _ := newTestService(repo, &mockWriter{})

	_, err := sut.PlaceOrder(context.Background(), testHandoff(), "jordan@example.com")
	require.ErrorContains(t, err, "database error")
}

func TestPlaceOrder_PublishFailureIsNotFatal(t *testing.T) {
	repo := &mockRepo{}
	writer := &mockWriter{err: fmt.Errorf("broker unreachable")}
	sut, machine := newTestService(repo, writer)

	o, err := sut.PlaceOrder(context.Background(), testHandoff(), "jordan@example.com")
	require.NoError(t, err, "the order is persisted even when the outbox write fails")
	assert.True(t, machine.Tracking(o.ID))
}

func TestBuildHandoff_NoPromo(t *testing.T) {
	c := cart.Cart{
		Items: []cart.CartItem{{ID: "1", ProductID: 1, Quantity: 2, UnitPrice: 10.00}},
		Count: 2,
		Total: 20.00,
	}

	h := BuildHandoff(c, nil, 5.00)
	assert.Equal(t, 20.00, h.Subtotal)
	assert.Equal(t, 0.0, h.Discount)
	assert.Equal(t, 25.00, h.Total)
	assert.Empty(t, h.PromoCode)
}

func TestBuildHandoff_PercentagePromo(t *testing.T) {
	c := cart.Cart{Total: 100.00}
	p := &promo.Promo{Code: "SAVE10", DiscountType: promo.DiscountPercentage, DiscountValue: 10}

	h := BuildHandoff(c, p, 5.00)
	assert.Equal(t, 10.00, h.Discount)
	assert.Equal(t, 95.00, h.Total)
	assert.Equal(t, "SAVE10", h.PromoCode)
}

func TestBuildHandoff_TotalClampedAtZero(t *testing.T) {
	c := cart.Cart{Total: 10.00}
	p := &promo.Promo{Code: "BIG", DiscountType: promo.DiscountFixed, DiscountValue: 50}

	h := BuildHandoff(c, p, 0)
	assert.Equal(t, 50.00, h.Discount)
	assert.Equal(t, 0.0, h.Total, "payable amount never goes negative")
}
