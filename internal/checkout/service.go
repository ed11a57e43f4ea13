package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/storefront-labs/order-core/internal/kafka"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/stock"
)

// ErrEmptyCart rejects placement with zero line items.
var ErrEmptyCart = errors.New("cart is empty")

// OrderStore is the persistence contract the orchestrator drives. The pg
// implementation is orders.Repo.
type OrderStore interface {
	CreatePlaced(ctx context.Context, o *orders.Order) error
	CreatePending(ctx context.Context, o *orders.Order) error
	Settle(ctx context.Context, orderID string) (already bool, err error)
	Delete(ctx context.Context, orderID string) error
}

// Availability is the read-only stock view used by the deferred-placement
// pre-check.
type Availability interface {
	Quantities(ctx context.Context, skus []string) (map[string]int, error)
}

// CartStore clears a buyer's pending cart after placement. Best effort.
type CartStore interface {
	Clear(ctx context.Context, buyerID string) error
}

// PaymentRedirector hands back the redirect/session handle for deferred
// payments. The gateway itself is an external collaborator.
type PaymentRedirector interface {
	CreateSession(ctx context.Context, o *orders.Order) (string, error)
}

// Publisher is satisfied by kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// PlacementInput is a checkout request. Items may name their SKU under any
// of the accepted identifier keys; TotalCents is the buyer-supplied total,
// stored as-is.
type PlacementInput struct {
	BuyerID         string          `json:"buyer_id"`
	Items           []stock.ItemRef `json:"items"`
	TotalCents      int64           `json:"total_cents"`
	ShippingAddress json.RawMessage `json:"shipping_address,omitempty"`
}

type Service struct {
	Orders      OrderStore
	Stock       Availability
	Cart        CartStore
	Payments    PaymentRedirector
	Events      Publisher
	Log         *zap.Logger
	ServiceName string
}

// PlaceImmediate places a cash-on-delivery order: the stock decrement
// commits with the record, and payment counts as settled at placement.
func (s *Service) PlaceImmediate(ctx context.Context, in PlacementInput) (*orders.Order, error) {
	o, err := s.buildOrder(in)
	if err != nil {
		return nil, err
	}
	if err := s.Orders.CreatePlaced(ctx, o); err != nil {
		return nil, orders.NameOutOfStock(err, o.Items)
	}
	s.clearCart(ctx, in.BuyerID)
	s.publish(orders.EventOrderPlaced, o.ID, orders.OrderPlacedPayload{
		OrderID: o.ID, BuyerID: o.BuyerID, Items: o.Items, TotalCents: o.TotalCents, Settled: true,
	})
	return o, nil
}

// PlaceDeferred places a redirect-payment order. Availability is checked but
// nothing is decremented; the commit happens at the settlement callback.
// Returns the order plus the gateway redirect handle.
func (s *Service) PlaceDeferred(ctx context.Context, in PlacementInput) (*orders.Order, string, error) {
	o, err := s.buildOrder(in)
	if err != nil {
		return nil, "", err
	}
	if err := s.precheck(ctx, o.Items); err != nil {
		return nil, "", err
	}
	if err := s.Orders.CreatePending(ctx, o); err != nil {
		return nil, "", err
	}
	s.clearCart(ctx, in.BuyerID)

	handle, err := s.Payments.CreateSession(ctx, o)
	if err != nil {
		return nil, "", fmt.Errorf("create payment session: %w", err)
	}
	s.publish(orders.EventOrderPlaced, o.ID, orders.OrderPlacedPayload{
		OrderID: o.ID, BuyerID: o.BuyerID, Items: o.Items, TotalCents: o.TotalCents, Settled: false,
	})
	return o, handle, nil
}

// Settle applies a gateway settlement notification. Success commits the
// decrement once (replays are no-ops); failure deletes the record outright.
func (s *Service) Settle(ctx context.Context, orderID string, success bool) error {
	if !success {
		return s.Orders.Delete(ctx, orderID)
	}
	already, err := s.Orders.Settle(ctx, orderID)
	if err != nil {
		return err
	}
	if !already {
		s.publish(orders.EventOrderSettled, orderID, orders.OrderSettledPayload{OrderID: orderID})
	}
	return nil
}

func (s *Service) buildOrder(in PlacementInput) (*orders.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	items := make([]orders.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		sku := it.SKU()
		if sku == "" {
			return nil, fmt.Errorf("line item %q has no sku", it.Name)
		}
		items = append(items, orders.LineItem{
			SKU:            sku,
			Name:           it.Name,
			UnitPriceCents: it.UnitPriceCents,
			Qty:            it.Quantity(),
		})
	}
	return &orders.Order{
		BuyerID:         in.BuyerID,
		Items:           items,
		TotalCents:      in.TotalCents,
		ShippingAddress: in.ShippingAddress,
	}, nil
}

// precheck verifies availability without mutating anything. The real commit
// point for deferred orders is Settle.
func (s *Service) precheck(ctx context.Context, items []orders.LineItem) error {
	skus := make([]string, 0, len(items))
	for _, it := range items {
		skus = append(skus, it.SKU)
	}
	have, err := s.Stock.Quantities(ctx, skus)
	if err != nil {
		return err
	}
	for _, it := range items {
		if have[it.SKU] < it.Qty {
			return &stock.OutOfStockError{
				SKU: it.SKU, Name: it.Name, Requested: it.Qty, Available: have[it.SKU],
			}
		}
	}
	return nil
}

func (s *Service) clearCart(ctx context.Context, buyerID string) {
	if s.Cart == nil {
		return
	}
	if err := s.Cart.Clear(ctx, buyerID); err != nil {
		s.Log.Warn("cart clear failed", zap.String("buyer_id", buyerID), zap.Error(err))
	}
}

func (s *Service) publish(eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
