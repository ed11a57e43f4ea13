package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/order-core/internal/stock"
)

// qtyMap stands in for the stock table so transitions can be driven end to
// end and the quantities observed.
type qtyMap map[string]int

func (q qtyMap) restock(items []stock.ItemQty) error {
	for _, it := range items {
		q[it.SKU] += it.Qty
	}
	return nil
}

func settledOrder(sku string, qty int) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:             "o1",
		BuyerID:        "b1",
		Items:          []LineItem{{SKU: sku, Name: "Item " + sku, UnitPriceCents: 500, Qty: qty}},
		Status:         StatusProcessing,
		PaymentSettled: true,
		SettledAt:      &now,
	}
}

func TestApplyTransition_SettledCancelRestoresExactly(t *testing.T) {
	// order committed a decrement of 2, leaving 8 on hand
	led := qtyMap{"B": 8}
	o := settledOrder("B", 2)

	require.NoError(t, applyTransition(o, StatusCanceled, time.Now().UTC(), led.restock))

	assert.Equal(t, StatusCanceled, o.Status)
	assert.Equal(t, 10, led["B"])
}

func TestApplyTransition_UnsettledCancelRestoresNothing(t *testing.T) {
	led := qtyMap{"B": 10}
	o := settledOrder("B", 2)
	o.PaymentSettled = false
	o.SettledAt = nil

	require.NoError(t, applyTransition(o, StatusCanceled, time.Now().UTC(), led.restock))

	assert.Equal(t, StatusCanceled, o.Status)
	assert.Equal(t, 10, led["B"])
}

func TestApplyTransition_TerminalOrderIsLockedAndUntouched(t *testing.T) {
	for _, terminal := range []Status{StatusDelivered, StatusCanceled} {
		t.Run(string(terminal), func(t *testing.T) {
			led := qtyMap{"B": 8}
			o := settledOrder("B", 2)
			o.Status = terminal
			before := *o

			err := applyTransition(o, StatusCanceled, time.Now().UTC(), func([]stock.ItemQty) error {
				t.Fatal("locked order must not touch the ledger")
				return nil
			})

			assert.ErrorIs(t, err, ErrOrderLocked)
			assert.Equal(t, before.Status, o.Status)
			assert.Equal(t, before.PaymentSettled, o.PaymentSettled)
			assert.Equal(t, 8, led["B"])
		})
	}
}

func TestApplyTransition_DeliverSettlesOnce(t *testing.T) {
	led := qtyMap{"B": 8}
	o := settledOrder("B", 2)
	o.PaymentSettled = false
	o.SettledAt = nil

	now := time.Now().UTC()
	require.NoError(t, applyTransition(o, StatusDelivered, now, led.restock))
	assert.True(t, o.PaymentSettled)
	require.NotNil(t, o.SettledAt)
	assert.Equal(t, now, *o.SettledAt)

	// already-settled delivery keeps the original settlement stamp
	o2 := settledOrder("B", 2)
	stamp := *o2.SettledAt
	require.NoError(t, applyTransition(o2, StatusDelivered, now.Add(time.Hour), led.restock))
	assert.Equal(t, stamp, *o2.SettledAt)
	assert.Equal(t, 8, led["B"])
}

func TestApplyTransition_CancelAfterSettledDelivery(t *testing.T) {
	// deliver then cancel is the locked path: stock stays decremented
	led := qtyMap{"B": 8}
	o := settledOrder("B", 2)

	require.NoError(t, applyTransition(o, StatusDelivered, time.Now().UTC(), led.restock))
	err := applyTransition(o, StatusCanceled, time.Now().UTC(), led.restock)

	assert.ErrorIs(t, err, ErrOrderLocked)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, 8, led["B"])
}
