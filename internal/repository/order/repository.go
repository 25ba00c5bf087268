package order

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists orders with their item snapshots.
//
// GetForUpdate locks the order row for the rest of the enclosing transaction; every
// mutation of an order or its payment takes this lock first.
// CompareAndSetStatus returns false without error when the stored status is not from.
type Repository interface {
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
	UpdateNotes(ctx context.Context, id, notes string) error
}
