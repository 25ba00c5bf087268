package payment

import (
	"context"

	"storefront/internal/domain"
)

// Repository stores the single payment record of each order. Save upserts by order id.
type Repository interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error)
	Save(ctx context.Context, p *domain.Payment) error
}
