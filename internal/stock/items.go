package stock

// DefaultQuantity is assumed for any item that arrives without an explicit
// quantity.
const DefaultQuantity = 1

// ItemRef is the shape inbound layers use to name a SKU. Older clients send
// the SKU under different keys, so all three are accepted.
type ItemRef struct {
	ID        string `json:"id,omitempty"`
	SKUID     string `json:"sku_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`

	Name           string `json:"name,omitempty"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
	Qty            int    `json:"qty,omitempty"`
}

// SKUPrecedence is the order in which an ItemRef's identifier fields are
// consulted; the first non-empty one wins.
var SKUPrecedence = [3]string{"id", "sku_id", "product_id"}

// SKU resolves the item's SKU following SKUPrecedence. Empty when no
// identifier field is set.
func (it ItemRef) SKU() string {
	for _, field := range SKUPrecedence {
		var v string
		switch field {
		case "id":
			v = it.ID
		case "sku_id":
			v = it.SKUID
		case "product_id":
			v = it.ProductID
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// Quantity returns the requested quantity, defaulting to DefaultQuantity
// when the field is absent or non-positive.
func (it ItemRef) Quantity() int {
	if it.Qty <= 0 {
		return DefaultQuantity
	}
	return it.Qty
}

// ItemQty is the resolved form the ledger operates on.
type ItemQty struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}
