package customer

import (
	"context"

	"storefront/internal/domain"
)

// Repository reads users and their addresses.
type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetAddress(ctx context.Context, id string) (*domain.Address, error)
	AddressBelongsToUser(ctx context.Context, addressID, userID string) (bool, error)
}
