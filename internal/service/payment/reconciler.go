// Package payment reconciles local payment and order state with the payment
// gateway, either from signed webhooks or from an on-demand session lookup.
package payment

import (
	"context"
	"errors"
	"io"
	"log"

	"storefront/internal/dedup"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/gateway"
	orderservice "storefront/internal/service/order"
	"storefront/internal/store"
)

var errDuplicate = errors.New("event already processed")

type Reconciler struct {
	store     store.Store
	lifecycle *orderservice.Lifecycle
	verifier  gateway.EventVerifier
	gateway   gateway.Gateway
	seen      dedup.Store
	events    events.Publisher
	logger    *log.Logger
}

func New(st store.Store, lifecycle *orderservice.Lifecycle, verifier gateway.EventVerifier, gw gateway.Gateway, seen dedup.Store, pub events.Publisher, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if seen == nil {
		seen = dedup.Nop{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Reconciler{
		store:     st,
		lifecycle: lifecycle,
		verifier:  verifier,
		gateway:   gw,
		seen:      seen,
		events:    pub,
		logger:    logger,
	}
}

// Outcome describes what a webhook delivery did.
type Outcome struct {
	EventID   string
	Kind      gateway.EventKind
	Duplicate bool
	Ignored   bool
}

// statusChange is collected inside a unit of work and published after commit.
type statusChange struct {
	orderID  string
	from, to domain.OrderStatus
}

// HandleWebhook verifies payload and applies it. An error is returned only for
// a bad signature or a failure the provider should retry.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (*Outcome, error) {
	ev, err := r.verifier.VerifyEvent(payload, signature)
	if err != nil {
		r.logger.Printf("webhook: rejected delivery: %v", err)
		return nil, err
	}
	return r.Apply(ctx, ev)
}

// Apply processes a verified event at most once per event id.
func (r *Reconciler) Apply(ctx context.Context, ev *gateway.Event) (*Outcome, error) {
	out := &Outcome{EventID: ev.ID, Kind: ev.Kind}
	if !handled(ev.Kind) {
		r.logger.Printf("webhook: event=%s kind=%s ignored", ev.ID, ev.Kind)
		out.Ignored = true
		return out, nil
	}

	if seen, err := r.seen.Seen(ctx, ev.ID); err != nil {
		r.logger.Printf("webhook: dedup lookup event=%s: %v", ev.ID, err)
	} else if seen {
		out.Duplicate = true
		return out, nil
	}

	var changes []statusChange
	err := r.store.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.Events().Record(ctx, ev.ID, string(ev.Kind)); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return errDuplicate
			}
			return err
		}
		var err error
		changes, err = r.applyEvent(ctx, tx, ev)
		return err
	})
	switch {
	case errors.Is(err, errDuplicate):
		out.Duplicate = true
	case err != nil:
		r.logger.Printf("webhook: event=%s kind=%s error=%v", ev.ID, ev.Kind, err)
		return nil, err
	}

	if err := r.seen.Mark(ctx, ev.ID); err != nil {
		r.logger.Printf("webhook: dedup mark event=%s: %v", ev.ID, err)
	}
	if out.Duplicate {
		r.logger.Printf("webhook: event=%s kind=%s duplicate", ev.ID, ev.Kind)
		return out, nil
	}
	r.publish(ctx, changes, "webhook:"+string(ev.Kind))
	r.logger.Printf("webhook: event=%s kind=%s applied changes=%d", ev.ID, ev.Kind, len(changes))
	return out, nil
}

func handled(kind gateway.EventKind) bool {
	switch kind {
	case gateway.CheckoutCompleted, gateway.CheckoutExpired, gateway.PaymentIntentFailed, gateway.ChargeRefunded:
		return true
	}
	return false
}

func (r *Reconciler) applyEvent(ctx context.Context, tx store.Tx, ev *gateway.Event) ([]statusChange, error) {
	switch ev.Kind {
	case gateway.CheckoutCompleted:
		return r.completed(ctx, tx, ev.SessionID, ev.PaymentIntentID, ev.CustomerID)
	case gateway.CheckoutExpired:
		return r.expired(ctx, tx, ev.SessionID)
	case gateway.PaymentIntentFailed:
		return r.intentFailed(ctx, tx, ev.PaymentIntentID)
	case gateway.ChargeRefunded:
		return r.refunded(ctx, tx, ev.PaymentIntentID)
	}
	return nil, nil
}

// lockBySession finds the payment for sessionID and returns it re-read under
// the order's row lock. A nil payment means there is nothing to reconcile.
func lockBySession(ctx context.Context, tx store.Tx, sessionID string) (*domain.Order, *domain.Payment, error) {
	if sessionID == "" {
		return nil, nil, nil
	}
	p, err := tx.Payments().GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	o, p, err := lockOrder(ctx, tx, p.OrderID)
	if err != nil || p == nil || p.SessionID != sessionID {
		return nil, nil, err
	}
	return o, p, nil
}

func lockByIntent(ctx context.Context, tx store.Tx, intentID string) (*domain.Order, *domain.Payment, error) {
	if intentID == "" {
		return nil, nil, nil
	}
	p, err := tx.Payments().GetByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	o, p, err := lockOrder(ctx, tx, p.OrderID)
	if err != nil || p == nil || p.IntentID != intentID {
		return nil, nil, err
	}
	return o, p, nil
}

func lockOrder(ctx context.Context, tx store.Tx, orderID string) (*domain.Order, *domain.Payment, error) {
	o, err := tx.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	p, err := tx.Payments().GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return o, nil, nil
		}
		return nil, nil, err
	}
	return o, p, nil
}

func (r *Reconciler) completed(ctx context.Context, tx store.Tx, sessionID, intentID, customerID string) ([]statusChange, error) {
	o, p, err := lockBySession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		r.logger.Printf("reconcile: no payment for session=%s", sessionID)
		return nil, nil
	}

	if !p.Settled() {
		p.Status = domain.PaymentPaid
		if intentID != "" {
			p.IntentID = intentID
			p.Stripe.PaymentIntentID = intentID
		}
		if customerID != "" {
			p.Stripe.CustomerID = customerID
		}
		p.Stripe.SessionID = sessionID
		if err := tx.Payments().Save(ctx, p); err != nil {
			return nil, err
		}
	}
	return r.advance(ctx, tx, o, domain.OrderProcessing, domain.OrderPaid)
}

func (r *Reconciler) expired(ctx context.Context, tx store.Tx, sessionID string) ([]statusChange, error) {
	o, p, err := lockBySession(ctx, tx, sessionID)
	if err != nil || p == nil {
		return nil, err
	}
	return r.fail(ctx, tx, o, p)
}

func (r *Reconciler) intentFailed(ctx context.Context, tx store.Tx, intentID string) ([]statusChange, error) {
	o, p, err := lockByIntent(ctx, tx, intentID)
	if err != nil || p == nil {
		return nil, err
	}
	return r.fail(ctx, tx, o, p)
}

// fail marks an unsettled payment FAILED and lets the order be paid again.
// Stock stays reserved while the order is PENDING.
func (r *Reconciler) fail(ctx context.Context, tx store.Tx, o *domain.Order, p *domain.Payment) ([]statusChange, error) {
	if p.Settled() {
		r.logger.Printf("reconcile: payment order_id=%s already %s, failure ignored", o.ID, p.Status)
		return nil, nil
	}
	if p.Status != domain.PaymentFailed {
		p.Status = domain.PaymentFailed
		if err := tx.Payments().Save(ctx, p); err != nil {
			return nil, err
		}
	}
	return r.advance(ctx, tx, o, domain.OrderProcessing, domain.OrderPending)
}

func (r *Reconciler) refunded(ctx context.Context, tx store.Tx, intentID string) ([]statusChange, error) {
	o, p, err := lockByIntent(ctx, tx, intentID)
	if err != nil || p == nil {
		return nil, err
	}
	if p.Status != domain.PaymentRefunded {
		p.Status = domain.PaymentRefunded
		if err := tx.Payments().Save(ctx, p); err != nil {
			return nil, err
		}
	}
	if o.Status == domain.OrderCancelled {
		return nil, nil
	}
	if !domain.CanTransition(o.Status, domain.OrderCancelled) {
		r.logger.Printf("reconcile: order_id=%s is %s, refund recorded without cancelling", o.ID, o.Status)
		return nil, nil
	}
	from := o.Status
	changed, err := r.lifecycle.Transition(ctx, tx, o, domain.OrderCancelled)
	if err != nil || !changed {
		return nil, err
	}
	return []statusChange{{orderID: o.ID, from: from, to: domain.OrderCancelled}}, nil
}

func (r *Reconciler) advance(ctx context.Context, tx store.Tx, o *domain.Order, from, to domain.OrderStatus) ([]statusChange, error) {
	changed, err := r.lifecycle.Advance(ctx, tx, o, from, to)
	if err != nil || !changed {
		return nil, err
	}
	return []statusChange{{orderID: o.ID, from: from, to: to}}, nil
}

func (r *Reconciler) publish(ctx context.Context, changes []statusChange, cause string) {
	for _, c := range changes {
		r.events.Publish(ctx, events.OrderStatusChanged, c.orderID, events.StatusChangedPayload{
			OrderID: c.orderID,
			From:    string(c.from),
			To:      string(c.to),
			Cause:   cause,
		})
	}
}
