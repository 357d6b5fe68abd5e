package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/order"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/promo"
)

var (
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrUnavailableItems = errors.New("cart contains items that are no longer available")
	ErrInvalidEmail     = errors.New("customer email is not valid")
)

// pinAttempts bounds regeneration when a generated tracking pin collides
// with an existing order.
const pinAttempts = 5

// Handoff is the payload the cart side hands to order creation:
// the lines, the totals and the single applied promo.
type Handoff struct {
	Items        []cart.CartItem `json:"items"`
	Subtotal     float64         `json:"subtotal"`
	Discount     float64         `json:"discount"`
	ShippingCost float64         `json:"shipping_cost"`
	Total        float64         `json:"total"`
	PromoCode    string          `json:"promo_code,omitempty"`
}

// BuildHandoff assembles the checkout payload from the cart and the
// attached promo. The payable total is clamped at zero here, per the
// promo evaluator's contract.
func BuildHandoff(c cart.Cart, applied *promo.Promo, shippingCost float64) Handoff {
	h := Handoff{
		Items:        c.Items,
		Subtotal:     c.Total,
		ShippingCost: shippingCost,
	}
	if applied != nil {
		h.Discount = promo.ComputeDiscount(*applied, c.Total)
		h.PromoCode = applied.Code
	}
	h.Total = h.Subtotal + h.ShippingCost - h.Discount
	if h.Total < 0 {
		h.Total = 0
	}
	return h
}

// eventWriter is the slice of kafka.Writer the service uses.
type eventWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Service turns a checkout handoff into a persisted order plus an outbox
// event on the order topic. It does not touch payment.
type Service struct {
	repo    order.OrderRepository
	machine *order.Machine
	writer  eventWriter
}

func NewService(repo order.OrderRepository, machine *order.Machine, brokers ...string) *Service {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-outbox",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Service{repo: repo, machine: machine, writer: w}
}

func (s *Service) Close() {
	if err := s.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}

// PlaceOrder persists a new pending order for the handoff. The tracking
// pin gets a fresh value on a unique-constraint collision, bounded so a
// broken pin namespace cannot loop forever.
func (s *Service) PlaceOrder(ctx context.Context, h Handoff, email string) (*order.Order, error) {
	if len(h.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range h.Items {
		if item.Unavailable {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrUnavailableItems)
		}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	items := make([]order.OrderItem, len(h.Items))
	for i, line := range h.Items {
		items[i] = order.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
	}

	o := &order.Order{
		ID:            uuid.New(),
		OrderNumber:   newOrderNumber(time.Now()),
		CustomerEmail: addr.Address,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Items:         items,
		Subtotal:      h.Subtotal,
		ShippingCost:  h.ShippingCost,
		Discount:      h.Discount,
		Total:         h.Total,
		CreatedAt:     time.Now(),
	}

	for attempt := 0; attempt < pinAttempts; attempt++ {
		o.TrackingPin = newTrackingPin()
		err = s.repo.CreateOrder(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, order.ErrDuplicateOrderNum) {
			o.OrderNumber = newOrderNumber(time.Now())
			continue
		}
		if !errors.Is(err, order.ErrPinCollision) {
			return nil, fmt.Errorf("create order: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not find a free tracking pin after %d attempts: %w", pinAttempts, err)
	}

	s.machine.Track(o)

	if err := s.publish(ctx, o); err != nil {
		// The order exists; the outbox event is best effort here and the
		// feed re-seeds projections from the store of record anyway.
		log.Printf("failed to publish order-created event for %s: %v", o.ID, err)
	}

	return o, nil
}

func (s *Service) publish(ctx context.Context, o *order.Order) error {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id":     o.ID.String(),
		"order_number": o.OrderNumber,
		"email":        o.CustomerEmail,
		"total":        o.Total,
		"created_at":   o.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(o.ID.String()), // order id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order_created")},
		},
	}

	return s.writer.WriteMessages(ctx, msg)
}

// Tracking pins live in their own 6-digit namespace, unrelated to order
// numbers. Uniqueness is enforced by the database; collisions regenerate.
func newTrackingPin() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}
