package order

import (
	"context"
	"io"
	"log"

	"storefront/internal/domain"
	"storefront/internal/service/inventory"
	"storefront/internal/store"
)

// Lifecycle applies state machine transitions. Entering CANCELLED releases
// the order's stock in the same unit of work, at most once.
type Lifecycle struct {
	ledger *inventory.Ledger
	logger *log.Logger
}

func NewLifecycle(ledger *inventory.Ledger, logger *log.Logger) *Lifecycle {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Lifecycle{ledger: ledger, logger: logger}
}

// Transition moves o to status to within tx and updates o in place.
// It reports false without error when o is already CANCELLED and to is CANCELLED,
// or when the stored status no longer matches o.Status.
func (l *Lifecycle) Transition(ctx context.Context, tx store.Tx, o *domain.Order, to domain.OrderStatus) (bool, error) {
	from := o.Status
	if from == to && to == domain.OrderCancelled {
		return false, nil
	}
	if !domain.CanTransition(from, to) {
		return false, &domain.TransitionError{From: from, To: to}
	}

	swapped, err := tx.Orders().CompareAndSetStatus(ctx, o.ID, from, to)
	if err != nil {
		return false, err
	}
	if !swapped {
		l.logger.Printf("order lifecycle: id=%s %s->%s lost race, skipped", o.ID, from, to)
		return false, nil
	}

	if to == domain.OrderCancelled {
		if err := l.ledger.ReleaseAll(ctx, tx.Products(), inventory.OrderLines(o.Items)); err != nil {
			return false, err
		}
	}
	o.Status = to
	l.logger.Printf("order lifecycle: id=%s %s->%s", o.ID, from, to)
	return true, nil
}

// Advance applies from -> to only when o is currently in from; any other
// current status is a silent no-op.
func (l *Lifecycle) Advance(ctx context.Context, tx store.Tx, o *domain.Order, from, to domain.OrderStatus) (bool, error) {
	if o.Status != from {
		return false, nil
	}
	return l.Transition(ctx, tx, o, to)
}
