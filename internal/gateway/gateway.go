// Package gateway describes the external payment provider used by checkout,
// reconciliation and refunds.
package gateway

import "context"

// LineItem is charged in integer minor units.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

// SessionRequest opens a hosted checkout for one order.
type SessionRequest struct {
	OrderID        string
	OrderNumber    string
	UserID         string
	CustomerEmail  string
	Currency       string
	Items          []LineItem
	ShippingAmount int64
	SuccessURL     string
	CancelURL      string
}

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

type SessionPaymentStatus string

const (
	SessionPaid   SessionPaymentStatus = "paid"
	SessionUnpaid SessionPaymentStatus = "unpaid"
)

// Session is the provider's view of a checkout session.
type Session struct {
	ID              string
	URL             string
	Status          SessionStatus
	PaymentStatus   SessionPaymentStatus
	PaymentIntentID string
	CustomerID      string
	OrderID         string
}

type RefundReason string

const (
	ReasonDuplicate           RefundReason = "duplicate"
	ReasonFraudulent          RefundReason = "fraudulent"
	ReasonRequestedByCustomer RefundReason = "requested_by_customer"
)

// Valid reports whether the provider accepts r.
func (r RefundReason) Valid() bool {
	switch r {
	case ReasonDuplicate, ReasonFraudulent, ReasonRequestedByCustomer:
		return true
	}
	return false
}

// RefundRequest refunds Amount minor units of a payment intent. Amount is always
// explicit and positive; a full refund passes the whole charge. IdempotencyKey
// makes retries of the same logical refund collapse into one.
type RefundRequest struct {
	PaymentIntentID string
	Amount          int64
	Reason          RefundReason
	IdempotencyKey  string
	OrderID         string
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Gateway is the outbound side of the payment provider.
type Gateway interface {
	OpenCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}

type EventKind string

const (
	CheckoutCompleted   EventKind = "checkout.session.completed"
	CheckoutExpired     EventKind = "checkout.session.expired"
	PaymentIntentFailed EventKind = "payment_intent.payment_failed"
	ChargeRefunded      EventKind = "charge.refunded"
)

// Event is a verified inbound notification. Kind keeps unknown provider types verbatim.
type Event struct {
	ID              string
	Kind            EventKind
	SessionID       string
	OrderID         string
	PaymentIntentID string
	CustomerID      string
}

// EventVerifier authenticates and decodes inbound webhook payloads. It fails
// with domain.ErrAuthentication when the signature does not match.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}
