package checkout

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	kafkax "github.com/storefront-labs/order-core/internal/kafka"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/stock"
)

type stubSettler struct {
	err    error
	calls  int
	lastID string
	lastOK bool
}

func (s *stubSettler) Settle(_ context.Context, orderID string, success bool) error {
	s.calls++
	s.lastID = orderID
	s.lastOK = success
	return s.err
}

func paymentResultMsg(orderID string, success bool) kafkago.Message {
	env := orders.Envelope{
		EventID:   "evt-1",
		EventType: "PaymentResult",
		Payload:   kafkax.MustMarshal(orders.PaymentResultPayload{OrderID: orderID, Success: success}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandlePaymentResult_Settles(t *testing.T) {
	s := &stubSettler{}
	c := &SettlementConsumer{Service: s, Log: zap.NewNop()}

	err := c.HandlePaymentResult(context.Background(), paymentResultMsg("o1", true))
	assert.NoError(t, err)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "o1", s.lastID)
	assert.True(t, s.lastOK)
}

func TestHandlePaymentResult_MalformedMessageIsDropped(t *testing.T) {
	s := &stubSettler{}
	c := &SettlementConsumer{Service: s, Log: zap.NewNop()}

	err := c.HandlePaymentResult(context.Background(), kafkago.Message{Value: []byte("{not json")})
	assert.NoError(t, err) // commit, don't poison the partition
	assert.Equal(t, 0, s.calls)
}

func TestHandlePaymentResult_UnknownOrderIsCommitted(t *testing.T) {
	s := &stubSettler{err: orders.ErrOrderNotFound}
	c := &SettlementConsumer{Service: s, Log: zap.NewNop()}

	err := c.HandlePaymentResult(context.Background(), paymentResultMsg("ghost", true))
	assert.NoError(t, err)
}

func TestHandlePaymentResult_TerminalOrderIsCommitted(t *testing.T) {
	s := &stubSettler{err: orders.ErrOrderLocked}
	c := &SettlementConsumer{Service: s, Log: zap.NewNop()}

	err := c.HandlePaymentResult(context.Background(), paymentResultMsg("o1", true))
	assert.NoError(t, err)
}

func TestHandlePaymentResult_SettlementConflictIsCommitted(t *testing.T) {
	s := &stubSettler{err: &stock.OutOfStockError{SKU: "B", Requested: 2}}
	c := &SettlementConsumer{Service: s, Log: zap.NewNop()}

	// the order stays unsettled; refund/retry is handled outside this core
	err := c.HandlePaymentResult(context.Background(), paymentResultMsg("o1", true))
	assert.NoError(t, err)
}

func TestHandlePaymentResult_StoreFailureIsRetried(t *testing.T) {
	s := &stubSettler{err: errors.New("connection reset")}
	c := &SettlementConsumer{Service: s, Log: zap.NewNop()}

	err := c.HandlePaymentResult(context.Background(), paymentResultMsg("o1", true))
	assert.Error(t, err) // nack: redelivery will retry
}
