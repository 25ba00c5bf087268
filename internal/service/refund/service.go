// Package refund reverses a paid order: money back through the gateway, then
// payment, order and stock updated together.
package refund

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/gateway"
	orderservice "storefront/internal/service/order"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

type Service struct {
	store     store.Store
	lifecycle *orderservice.Lifecycle
	gateway   gateway.Gateway
	events    events.Publisher
	now       func() time.Time
	logger    *log.Logger
}

func New(st store.Store, lifecycle *orderservice.Lifecycle, gw gateway.Gateway, pub events.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{store: st, lifecycle: lifecycle, gateway: gw, events: pub, now: time.Now, logger: logger}
}

// Input requests a refund. A nil Amount refunds the full payment.
type Input struct {
	OrderID string
	Amount  *decimal.Decimal
	Reason  string
}

type Result struct {
	RefundID string
	Amount   decimal.Decimal
	Status   string
}

// IdempotencyKey is sent with every refund for orderID so retries collapse upstream.
func IdempotencyKey(orderID string) string {
	return "refund-" + orderID
}

// Refund returns money for a PAID order, marks the payment REFUNDED and
// cancels the order, releasing its stock. Nothing local changes when the
// gateway call fails.
func (s *Service) Refund(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, domain.Invalid("orderId", "required")
	}
	reason := gateway.ReasonRequestedByCustomer
	if r := strings.TrimSpace(in.Reason); r != "" {
		reason = gateway.RefundReason(r)
	}
	if !reason.Valid() {
		return nil, domain.Invalid("reason", "must be one of duplicate, fraudulent, requested_by_customer")
	}

	var p *domain.Payment
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().GetByID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(o.Status, domain.OrderCancelled) {
			return &domain.TransitionError{From: o.Status, To: domain.OrderCancelled}
		}
		p, err = refundable(ctx, tx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	amount := p.Amount
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, domain.Invalid("amount", "must be greater than zero")
		}
		if !in.Amount.Equal(in.Amount.Round(2)) {
			return nil, domain.Invalid("amount", "must have at most two decimal places")
		}
		if in.Amount.GreaterThan(p.Amount) {
			return nil, domain.Invalid("amount", fmt.Sprintf("must not exceed the paid amount %s", p.Amount.StringFixed(2)))
		}
		amount = *in.Amount
	}

	minor := domain.ToMinorUnits(amount)
	if minor <= 0 {
		return nil, domain.Invalid("amount", "must be at least one minor unit")
	}
	ref, err := s.gateway.Refund(ctx, gateway.RefundRequest{
		PaymentIntentID: p.IntentID,
		Amount:          minor,
		Reason:          reason,
		IdempotencyKey:  IdempotencyKey(in.OrderID),
		OrderID:         in.OrderID,
	})
	if err != nil {
		s.logger.Printf("refund: order_id=%s gateway error=%v", in.OrderID, err)
		return nil, &domain.UpstreamError{Op: "refund", Err: err}
	}

	var from domain.OrderStatus
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		p, err := tx.Payments().GetByOrderID(ctx, o.ID)
		if err != nil {
			return err
		}
		p.Status = domain.PaymentRefunded
		p.Stripe.RefundID = ref.ID
		p.Stripe.RefundAmount = ref.Amount
		p.Stripe.RefundReason = string(reason)
		if err := tx.Payments().Save(ctx, p); err != nil {
			return err
		}

		o.AppendNote(fmt.Sprintf("Refunded at %s. Reason: %s", s.now().UTC().Format(time.RFC3339), reason))
		if err := tx.Orders().UpdateNotes(ctx, o.ID, o.Notes); err != nil {
			return err
		}

		from = o.Status
		changed, err := s.lifecycle.Transition(ctx, tx, o, domain.OrderCancelled)
		if err != nil {
			return err
		}
		if !changed {
			from = ""
		}
		return nil
	})
	if err != nil {
		// The gateway already moved the money; a charge.refunded webhook or a retry completes the local side.
		s.logger.Printf("refund: order_id=%s refund=%s record error=%v", in.OrderID, ref.ID, err)
		return nil, err
	}

	major := domain.FromMinorUnits(ref.Amount)
	s.logger.Printf("refund: order_id=%s refund=%s amount=%s status=%s", in.OrderID, ref.ID, major.StringFixed(2), ref.Status)
	s.events.Publish(ctx, events.PaymentRefunded, in.OrderID, events.PaymentRefundedPayload{
		OrderID:  in.OrderID,
		RefundID: ref.ID,
		Amount:   major.StringFixed(2),
		Reason:   string(reason),
	})
	if from != "" {
		s.events.Publish(ctx, events.OrderStatusChanged, in.OrderID, events.StatusChangedPayload{
			OrderID: in.OrderID,
			From:    string(from),
			To:      string(domain.OrderCancelled),
			Cause:   "refund",
		})
	}
	return &Result{RefundID: ref.ID, Amount: major, Status: ref.Status}, nil
}

func refundable(ctx context.Context, tx store.Tx, orderID string) (*domain.Payment, error) {
	p, err := tx.Payments().GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotRefundable
		}
		return nil, err
	}
	if p.Status != domain.PaymentPaid {
		return nil, domain.ErrNotRefundable
	}
	if p.IntentID == "" {
		return nil, domain.ErrMissingIntent
	}
	return p, nil
}
