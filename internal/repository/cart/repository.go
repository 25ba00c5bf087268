package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists one cart per user. GetByUser returns domain.ErrNotFound when the user never had a cart.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	ChangeItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	Clear(ctx context.Context, cartID string) error
}
