package product

import (
	"context"

	"storefront/internal/domain"
)

// Repository reads catalog entries and applies stock movements.
// ReserveStock fails with *domain.InsufficientStockError instead of letting stock go negative.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ReserveStock(ctx context.Context, id string, qty int) error
	ReleaseStock(ctx context.Context, id string, qty int) error
}
