package order

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventField names which axis of the order a status event moves.
type EventField string

const (
	FieldStatus        EventField = "status"
	FieldPaymentStatus EventField = "payment_status"
)

// StatusEvent is one backend-originated change from the order-event feed.
// The client side never invents transitions, it only applies these.
type StatusEvent struct {
	OrderID   string     `json:"order_id"`
	Field     EventField `json:"field"`
	NewValue  string     `json:"new_value"`
	Timestamp time.Time  `json:"timestamp"`
}

var (
	ErrUnknownOrder  = errors.New("order not tracked")
	ErrUnknownField  = errors.New("unknown event field")
	ErrUnknownValue  = errors.New("unknown status value")
	ErrTerminalState = errors.New("order is in a terminal state")
)

// Machine holds the in-memory status projection per order and is its sole
// writer. Events are applied in feed-delivery order; the only reordering
// defense is that a terminal state never regresses, which also makes
// duplicate or replayed delivery harmless.
type Machine struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order
}

func NewMachine() *Machine {
	return &Machine{orders: make(map[uuid.UUID]*Order)}
}

// Track seeds the projection for an order of interest.
func (m *Machine) Track(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracked := *o
	m.orders[o.ID] = &tracked
}

// Get returns a copy of the tracked projection.
func (m *Machine) Get(id uuid.UUID) (*Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	out := *o
	return &out, true
}

// Tracking reports whether an order is projected.
func (m *Machine) Tracking(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.orders[id]
	return ok
}

// ValidNext lists the statuses the order may legally move to.
func (m *Machine) ValidNext(id uuid.UUID) []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}

	all := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
	var next []Status
	for _, s := range all {
		if o.Status.CanTransitionTo(s) {
			next = append(next, s)
		}
	}
	return next
}

// Apply updates the projection for one event. A bad event is reported, not
// fatal: the machine stays consistent and later events for other orders are
// unaffected.
func (m *Machine) Apply(ev StatusEvent) error {
	id, err := uuid.Parse(ev.OrderID)
	if err != nil {
		return fmt.Errorf("event order_id %q: %w", ev.OrderID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", ev.OrderID, ErrUnknownOrder)
	}

	switch ev.Field {
	case FieldStatus:
		next, ok := ParseStatus(ev.NewValue)
		if !ok {
			return fmt.Errorf("status %q: %w", ev.NewValue, ErrUnknownValue)
		}
		if o.Status.IsTerminal() {
			return fmt.Errorf("order %s already %s: %w", ev.OrderID, o.Status, ErrTerminalState)
		}
		o.Status = next
		o.UpdatedAt = ev.Timestamp
		switch next {
		case StatusShipped:
			ts := ev.Timestamp
			o.ShippedAt = &ts
		case StatusDelivered:
			ts := ev.Timestamp
			o.DeliveredAt = &ts
		}
		return nil

	case FieldPaymentStatus:
		next, ok := ParsePaymentStatus(ev.NewValue)
		if !ok {
			return fmt.Errorf("payment status %q: %w", ev.NewValue, ErrUnknownValue)
		}
		if o.PaymentStatus.Settled() {
			return fmt.Errorf("order %s payment already %s: %w", ev.OrderID, o.PaymentStatus, ErrTerminalState)
		}
		o.PaymentStatus = next
		o.UpdatedAt = ev.Timestamp
		return nil

	default:
		return fmt.Errorf("field %q: %w", ev.Field, ErrUnknownField)
	}
}
