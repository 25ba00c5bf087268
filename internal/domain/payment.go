package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

const PaymentMethodCard = "CREDIT_CARD"

// Payment is one-to-one with an Order.
type Payment struct {
	ID        string
	OrderID   string
	Amount    decimal.Decimal
	Method    string
	Status    PaymentStatus
	SessionID string
	IntentID  string
	Stripe    StripeDetails
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StripeDetails is the gateway metadata stored alongside a payment.
type StripeDetails struct {
	SessionID       string `json:"sessionId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	CustomerID      string `json:"customerId,omitempty"`
	RefundID        string `json:"refundId,omitempty"`
	RefundAmount    int64  `json:"refundAmount,omitempty"`
	RefundReason    string `json:"refundReason,omitempty"`
}

// Settled reports whether gateway failures can no longer change the payment.
func (p *Payment) Settled() bool {
	return p.Status == PaymentPaid || p.Status == PaymentRefunded
}
