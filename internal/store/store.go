// Package store groups the repositories behind a single transaction boundary.
package store

import (
	"context"

	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	eventrepo "storefront/internal/repository/event"
	orderrepo "storefront/internal/repository/order"
	paymentrepo "storefront/internal/repository/payment"
	productrepo "storefront/internal/repository/product"
)

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Orders() orderrepo.Repository
	Payments() paymentrepo.Repository
	Products() productrepo.Repository
	Carts() cartrepo.Repository
	Customers() customerrepo.Repository
	Events() eventrepo.Repository
}

// Store runs fn atomically: every write made through tx is committed when fn
// returns nil and discarded otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
