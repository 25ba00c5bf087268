package payment

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// SyncResult is the payment state after a gateway lookup.
type SyncResult struct {
	OrderID       string
	OrderStatus   domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Amount        decimal.Decimal
	SessionID     string
	SessionStatus gateway.SessionStatus
	SessionPaid   bool
}

// Sync asks the gateway for the order's checkout session and applies the same
// rules a webhook would. It recovers orders whose webhook never arrived.
func (r *Reconciler) Sync(ctx context.Context, userID, orderID string, admin bool) (*SyncResult, error) {
	var sessionID string
	err := r.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !admin && o.UserID != userID {
			return domain.ErrNotFound
		}
		p, err := tx.Payments().GetByOrderID(ctx, o.ID)
		if err != nil {
			return err
		}
		sessionID = p.SessionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, domain.ErrMissingSession
	}

	sess, err := r.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		r.logger.Printf("payment sync: order_id=%s session=%s gateway error=%v", orderID, sessionID, err)
		return nil, &domain.UpstreamError{Op: "retrieve checkout session", Err: err}
	}

	res := &SyncResult{OrderID: orderID, SessionID: sessionID, SessionStatus: sess.Status, SessionPaid: sess.PaymentStatus == gateway.SessionPaid}
	var changes []statusChange
	err = r.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		switch {
		case sess.PaymentStatus == gateway.SessionPaid:
			changes, err = r.completed(ctx, tx, sessionID, sess.PaymentIntentID, sess.CustomerID)
		case sess.Status == gateway.SessionExpired:
			changes, err = r.expired(ctx, tx, sessionID)
		}
		if err != nil {
			return err
		}

		o, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		p, err := tx.Payments().GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		res.OrderStatus = o.Status
		res.PaymentStatus = p.Status
		res.Amount = p.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, changes, "payment_sync")
	r.logger.Printf("payment sync: order_id=%s session=%s session_status=%s payment=%s", orderID, sessionID, sess.Status, res.PaymentStatus)
	return res, nil
}
