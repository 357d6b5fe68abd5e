package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/order"
)

var ErrNotFound = errors.New("no order matches that tracking code")

// ValidationError reports malformed input rejected before any query is
// issued. Distinct from ErrNotFound: a well-formed code that matches
// nothing is NotFound, a malformed one never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OrderReader is the slice of the orders repository the resolver needs.
type OrderReader interface {
	GetOrderByTrackingPin(ctx context.Context, pin string) (*order.Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]*order.Order, error)
}

// Progress is the display-ready view of one order's tracking state. It is
// rebuilt on every lookup and owns nothing.
type Progress struct {
	Order *order.Order `json:"order"`
	Step  int          `json:"step"`
}

// Resolver maps tracking pins and contact emails to orders. It only reads;
// the lifecycle machine stays the sole writer of status projections.
type Resolver struct {
	orders  OrderReader
	machine *order.Machine
}

func NewResolver(orders OrderReader, machine *order.Machine) *Resolver {
	return &Resolver{orders: orders, machine: machine}
}

// ByTrackingCode resolves a six-digit pin to exactly one order.
func (r *Resolver) ByTrackingCode(ctx context.Context, code string) (*Progress, error) {
	if err := validatePin(code); err != nil {
		return nil, err
	}

	o, err := r.orders.GetOrderByTrackingPin(ctx, code)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return r.project(o), nil
}

// ByEmail is the recovery path when the pin is lost: every order placed
// with the address, newest first. An empty result is a valid "no orders"
// outcome, not an error.
func (r *Resolver) ByEmail(ctx context.Context, email string) ([]*Progress, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, &ValidationError{Field: "email", Reason: "not a valid email address"}
	}

	orders, err := r.orders.ListOrdersByEmail(ctx, addr.Address)
	if err != nil {
		return nil, err
	}

	progress := make([]*Progress, len(orders))
	for i, o := range orders {
		progress[i] = r.project(o)
	}
	return progress, nil
}

// project prefers the machine's in-memory state when the order is tracked:
// it has seen feed events the stored row may lag behind.
func (r *Resolver) project(o *order.Order) *Progress {
	if r.machine != nil {
		if live, ok := r.machine.Get(o.ID); ok {
			o = live
		}
	}
	return &Progress{Order: o, Step: o.Status.Step()}
}

func validatePin(code string) error {
	if len(code) != 6 {
		return &ValidationError{Field: "tracking code", Reason: "must be exactly 6 digits"}
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return &ValidationError{Field: "tracking code", Reason: "must contain only digits"}
		}
	}
	return nil
}
