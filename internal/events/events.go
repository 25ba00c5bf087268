// Package events publishes order lifecycle events after their unit of work commits.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	PaymentRefunded    Type = "payment.refunded"
)

// Envelope is the wire format of every published event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     Type            `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID string      `json:"order_id"`
	Number  string      `json:"number"`
	UserID  string      `json:"user_id"`
	Total   string      `json:"total"`
	Items   []OrderItem `json:"items"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Cause   string `json:"cause"`
}

type PaymentRefundedPayload struct {
	OrderID  string `json:"order_id"`
	RefundID string `json:"refund_id"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason"`
}

// Publisher delivers events on a best-effort basis. Publish never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, eventType Type, key string, payload any)
}

// NewEnvelope wraps payload with a fresh event id.
func NewEnvelope(producer string, eventType Type, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Type, string, any) {}
