package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/store"
)

// Service serves order reads, user cancellation and admin status overrides.
type Service struct {
	store     store.Store
	lifecycle *Lifecycle
	events    events.Publisher
	logger    *log.Logger
}

func New(st store.Store, lifecycle *Lifecycle, pub events.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{store: st, lifecycle: lifecycle, events: pub, logger: logger}
}

// Details is an order with its address and payment, when one exists.
type Details struct {
	Order   *domain.Order
	Payment *domain.Payment
}

// Get returns the order for its owner, or for any caller when admin is set.
func (s *Service) Get(ctx context.Context, userID, orderID string, admin bool) (*Details, error) {
	var out Details
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !admin && o.UserID != userID {
			return domain.ErrForbidden
		}
		addr, err := tx.Customers().GetAddress(ctx, o.AddressID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		o.Address = addr

		p, err := tx.Payments().GetByOrderID(ctx, o.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out = Details{Order: o, Payment: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel lets a user cancel their own order while it is still PENDING.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	var (
		o       *domain.Order
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return domain.ErrForbidden
		}
		if o.Status != domain.OrderPending {
			return domain.ErrNotPending
		}
		changed, err = s.lifecycle.Transition(ctx, tx, o, domain.OrderCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Printf("order: cancelled by user order_id=%s user_id=%s", o.ID, userID)
		s.publishStatus(ctx, o.ID, domain.OrderPending, domain.OrderCancelled, "user_cancel")
	}
	return o, nil
}

// UpdateStatusInput is an admin status override. Notes, when set, replaces the order notes.
type UpdateStatusInput struct {
	OrderID string
	Status  string
	Notes   *string
}

// UpdateStatus applies an admin override along the state machine. Paid orders
// are cancelled through a refund, never directly.
func (s *Service) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*domain.Order, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, domain.Invalid("orderId", "required")
	}
	to, err := domain.ParseOrderStatus(in.Status)
	if err != nil {
		return nil, err
	}

	var (
		o       *domain.Order
		from    domain.OrderStatus
		changed bool
	)
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.Orders().GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		from = o.Status
		if from == domain.OrderPaid && to == domain.OrderCancelled {
			return fmt.Errorf("%w: paid orders are cancelled by issuing a refund", &domain.TransitionError{From: from, To: to})
		}
		changed, err = s.lifecycle.Transition(ctx, tx, o, to)
		if err != nil {
			return err
		}
		if !changed && from != to {
			return fmt.Errorf("%w: order status changed concurrently", domain.ErrConflict)
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
			if err := tx.Orders().UpdateNotes(ctx, o.ID, o.Notes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Printf("order: admin status order_id=%s to=%s error=%v", in.OrderID, to, err)
		return nil, err
	}
	if changed {
		s.logger.Printf("order: admin status order_id=%s %s->%s", o.ID, from, to)
		s.publishStatus(ctx, o.ID, from, to, "admin")
	}
	return o, nil
}

func (s *Service) publishStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, cause string) {
	s.events.Publish(ctx, events.OrderStatusChanged, orderID, events.StatusChangedPayload{
		OrderID: orderID,
		From:    string(from),
		To:      string(to),
		Cause:   cause,
	})
}
