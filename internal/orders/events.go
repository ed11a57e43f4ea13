package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderSettled       = "OrderSettled"
	EventOrderCanceled      = "OrderCanceled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID    string     `json:"order_id"`
	BuyerID    string     `json:"buyer_id"`
	Items      []LineItem `json:"items"`
	TotalCents int64      `json:"total_cents"`
	Settled    bool       `json:"settled"` // true for immediate flows
}

type OrderSettledPayload struct {
	OrderID string `json:"order_id"`
}

type OrderCanceledPayload struct {
	OrderID  string `json:"order_id"`
	Restored bool   `json:"restored"` // stock compensation was issued
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
}

// PaymentResultPayload arrives from the payment gateway on TopicPaymentResults.
type PaymentResultPayload struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
