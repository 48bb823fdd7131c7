package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderAssigned      = "OrderAssigned"
	EventPaymentConfirmed   = "PaymentConfirmed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	Items      []Item `json:"items"`
	TotalCents int64  `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Actor   string `json:"actor"`
	Note    string `json:"note,omitempty"`
}

type OrderAssignedPayload struct {
	OrderID string `json:"order_id"`
	AgentID string `json:"agent_id"`
}

// PaymentConfirmedPayload is published by the payment gateway adapter once
// it has verified the callback.
type PaymentConfirmedPayload struct {
	OrderID     string `json:"order_id"`
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount"`
}
