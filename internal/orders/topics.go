package orders

const (
	// Outbound lifecycle events, one topic; the envelope carries the type.
	TopicOrderEvents = "order.events"

	// Inbound settlement notifications from the payment gateway.
	TopicPaymentResults = "payment.results"
)

// Partition key = order_id so every event of one order stays in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
