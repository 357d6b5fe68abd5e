package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status string coming off the event feed.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether the happy-path progression (or a
// cancellation from any non-terminal state) permits the move. The machine
// uses it for valid-next-state queries; the event feed itself is applied in
// delivery order with only the terminal guard.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusConfirmed
	case StatusConfirmed:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusShipped
	case StatusShipped:
		return next == StatusDelivered
	default:
		return false
	}
}

// Step maps the status to the ordinal used by progress rendering:
// 1 received, 2 payment confirmed, 3 processing, 4 shipped, 5 delivered.
// Cancelled orders map to 0.
func (s Status) Step() int {
	switch s {
	case StatusPending:
		return 1
	case StatusConfirmed:
		return 2
	case StatusProcessing:
		return 3
	case StatusShipped:
		return 4
	case StatusDelivered:
		return 5
	default:
		return 0
	}
}

// PaymentStatus is tracked alongside Status but on its own axis: an order
// can be confirmed while its payment is still pending.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return PaymentStatus(s), true
	default:
		return "", false
	}
}

// Settled reports whether the payment reached one of its final states.
func (p PaymentStatus) Settled() bool {
	return p == PaymentPaid || p == PaymentFailed
}

type OrderItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	TrackingPin   string
	CustomerEmail string
	Status        Status
	PaymentStatus PaymentStatus
	Items         []OrderItem
	Subtotal      float64
	ShippingCost  float64
	Discount      float64
	Total         float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
}

func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}
