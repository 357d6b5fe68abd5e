package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// statusChange mirrors the payload shape on the order-events topic.
type statusChange struct {
	OrderID   string    `json:"order_id"`
	Field     string    `json:"field"`
	NewValue  string    `json:"new_value"`
	Timestamp time.Time `json:"timestamp"`
}

// Consumer reads backend-originated status changes off the order-events
// topic, applies them to the machine and mirrors them into the repository.
// A malformed or out-of-order message is dropped with a diagnostic; it
// never halts processing of later messages.
type Consumer struct {
	repo    OrderRepository
	machine *Machine
	reader  *kafka.Reader
}

func NewConsumer(repo OrderRepository, machine *Machine, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "order-events",
		GroupID:  "storefront-order-projection",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{repo: repo, machine: machine, reader: reader}
}

// Seed loads every open order into the machine. Called at startup and
// after a feed reconnect: rather than resuming mid-stream blind, the
// projection is rebuilt from the store of record.
func (c *Consumer) Seed(ctx context.Context) error {
	orders, err := c.repo.ListOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("seed projections: %w", err)
	}
	for _, o := range orders {
		c.machine.Track(o)
	}
	log.Printf("seeded %d open order projections", len(orders))
	return nil
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	err := c.reader.Close()
	if err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}

	var change statusChange
	if err := json.Unmarshal(m.Value, &change); err != nil {
		log.Printf("error parsing message: %v", err)
		return
	}

	ev := StatusEvent{
		OrderID:   change.OrderID,
		Field:     EventField(change.Field),
		NewValue:  change.NewValue,
		Timestamp: change.Timestamp,
	}

	if err := c.apply(ctx, ev); err != nil {
		log.Printf("dropping order event for %s: %v", change.OrderID, err)
	}
}

func (c *Consumer) apply(ctx context.Context, ev StatusEvent) error {
	err := c.machine.Apply(ev)
	if errors.Is(err, ErrUnknownOrder) {
		// An order created before this process started: fetch it and retry.
		id, parseErr := uuid.Parse(ev.OrderID)
		if parseErr != nil {
			return parseErr
		}
		o, getErr := c.repo.GetOrderByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		c.machine.Track(o)
		err = c.machine.Apply(ev)
	}
	if err != nil {
		return err
	}

	// Mirror the accepted transition into the store of record.
	id, _ := uuid.Parse(ev.OrderID)
	switch ev.Field {
	case FieldStatus:
		status, _ := ParseStatus(ev.NewValue)
		if err := c.repo.UpdateStatus(ctx, id, status, ev.Timestamp); err != nil {
			return fmt.Errorf("persist status change: %w", err)
		}
	case FieldPaymentStatus:
		status, _ := ParsePaymentStatus(ev.NewValue)
		if err := c.repo.UpdatePaymentStatus(ctx, id, status, ev.Timestamp); err != nil {
			return fmt.Errorf("persist payment change: %w", err)
		}
	}
	return nil
}
