package orders

import (
	"time"

	"github.com/storefront-labs/order-core/internal/stock"
)

// Status is an order's lifecycle state. The four canonical values below get
// transition side effects; admins may also write freeform statuses, which
// carry no guarantees beyond the terminal-state lock.
type Status string

const (
	StatusProcessing     Status = "Processing"
	StatusOutForDelivery Status = "OutForDelivery"
	StatusDelivered      Status = "Delivered"
	StatusCanceled       Status = "Canceled"
)

// Terminal reports whether no further transition is permitted from s.
// Freeform statuses are never terminal.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// Canonical reports whether s is one of the four statuses the state machine
// defines side effects for.
func (s Status) Canonical() bool {
	switch s {
	case StatusProcessing, StatusOutForDelivery, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

// transition captures the side effects of entering a status.
type transition struct {
	settle  bool // set payment_settled + settled_at
	restock bool // compensate a previously committed decrement
}

// planTransition decides whether moving a (status, settled) order to next is
// legal and which side effects apply. It must be consulted before any
// mutation: a locked order gets no ledger touch.
func planTransition(current Status, settled bool, next Status) (transition, error) {
	if current.Terminal() {
		return transition{}, ErrOrderLocked
	}
	var t transition
	switch next {
	case StatusDelivered:
		// cash on delivery settles on delivery; a no-op when already settled
		t.settle = !settled
	case StatusCanceled:
		// only a committed decrement has anything to restore
		t.restock = settled
	}
	return t, nil
}

// applyTransition mutates o per the lifecycle rules, calling restock to
// compensate stock when canceling a settled order. o is left untouched when
// the transition is rejected or compensation fails.
func applyTransition(o *Order, next Status, now time.Time, restock func([]stock.ItemQty) error) error {
	plan, err := planTransition(o.Status, o.PaymentSettled, next)
	if err != nil {
		return err
	}
	if plan.restock {
		if err := restock(o.StockItems()); err != nil {
			return err
		}
	}
	if plan.settle {
		o.PaymentSettled = true
		o.SettledAt = &now
	}
	o.Status = next
	return nil
}
