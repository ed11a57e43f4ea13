package orders

import (
	"encoding/json"
	"time"

	"github.com/storefront-labs/order-core/internal/stock"
)

// LineItem is captured by value at placement time. Later catalog edits never
// touch it.
type LineItem struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
}

type Order struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	Items           []LineItem      `json:"items"`
	TotalCents      int64           `json:"total_cents"`
	ShippingAddress json.RawMessage `json:"shipping_address,omitempty"`
	Status          Status          `json:"status"`
	PaymentSettled  bool            `json:"payment_settled"`
	SettledAt       *time.Time      `json:"settled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StockItems maps the snapshot back to ledger items for decrement and
// compensation.
func (o *Order) StockItems() []stock.ItemQty {
	out := make([]stock.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, stock.ItemQty{SKU: it.SKU, Qty: it.Qty})
	}
	return out
}
