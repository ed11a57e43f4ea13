package checkout

import (
	"context"
	"fmt"

	"github.com/storefront-labs/order-core/internal/orders"
)

// RedirectGateway builds the hosted-checkout redirect handle for a pending
// order. The gateway reports the outcome later on the payment.results topic;
// this side never calls out to it.
type RedirectGateway struct {
	BaseURL string
}

func (g *RedirectGateway) CreateSession(_ context.Context, o *orders.Order) (string, error) {
	return fmt.Sprintf("%s/session/%s?amount=%d", g.BaseURL, o.ID, o.TotalCents), nil
}
