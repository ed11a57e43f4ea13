package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/storefront-labs/order-core/internal/kafka"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/redisx"
	"github.com/storefront-labs/order-core/internal/stock"
)

// Settler is the slice of Service the consumer needs.
type Settler interface {
	Settle(ctx context.Context, orderID string, success bool) error
}

// SettlementConsumer applies payment.results notifications from the gateway.
type SettlementConsumer struct {
	Service Settler
	Redis   *redis.Client
	Log     *zap.Logger
}

// HandlePaymentResult is wired as the kafka consumer handler. Returning nil
// commits the offset; only store failures are left for redelivery.
func (c *SettlementConsumer) HandlePaymentResult(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.Log.Warn("malformed payment result, dropping", zap.Error(err))
		return nil
	}

	// dedup by event id; Settle is idempotent anyway, this just skips work
	dkey := fmt.Sprintf(redisx.KeyDedup, "settlement", env.EventID)
	if c.Redis != nil {
		if seen, _ := redisx.Exists(ctx, c.Redis, dkey); seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.PaymentResultPayload](env.Payload)
	if err != nil {
		c.Log.Warn("malformed payment result payload, dropping", zap.Error(err))
		return nil
	}

	err = c.Service.Settle(ctx, p.OrderID, p.Success)
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrOrderNotFound):
		c.Log.Warn("payment result for unknown order", zap.String("order_id", p.OrderID))
	case errors.Is(err, orders.ErrOrderLocked):
		// order reached a terminal status before the gateway reported
		c.Log.Warn("payment result for terminal order", zap.String("order_id", p.OrderID))
	default:
		var oos *stock.OutOfStockError
		if errors.As(err, &oos) {
			// stock sold out between placement and settlement; the order
			// stays unsettled and refund handling is the gateway's problem
			c.Log.Warn("settlement conflict, order left unsettled",
				zap.String("order_id", p.OrderID), zap.String("sku", oos.SKU),
				zap.Int("requested", oos.Requested), zap.Int("available", oos.Available))
			break
		}
		return err // store failure: retry via redelivery
	}

	if c.Redis != nil {
		_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}
