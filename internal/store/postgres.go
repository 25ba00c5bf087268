package store

import (
	"context"
	"fmt"
	"io"
	"log"

	"storefront/internal/db"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	eventrepo "storefront/internal/repository/event"
	orderrepo "storefront/internal/repository/order"
	paymentrepo "storefront/internal/repository/payment"
	productrepo "storefront/internal/repository/product"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) *Postgres {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Postgres{pool: pool, logger: logger}
}

func (s *Postgres) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(pgTx{q: tx, logger: s.logger}); err != nil {
		return txError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	q      db.Querier
	logger *log.Logger
}

func (t pgTx) Orders() orderrepo.Repository       { return orderrepo.NewPostgres(t.q, t.logger) }
func (t pgTx) Payments() paymentrepo.Repository   { return paymentrepo.NewPostgres(t.q, t.logger) }
func (t pgTx) Products() productrepo.Repository   { return productrepo.NewPostgres(t.q, t.logger) }
func (t pgTx) Carts() cartrepo.Repository         { return cartrepo.NewPostgres(t.q, t.logger) }
func (t pgTx) Customers() customerrepo.Repository { return customerrepo.NewPostgres(t.q, t.logger) }
func (t pgTx) Events() eventrepo.Repository       { return eventrepo.NewPostgres(t.q) }

// txError turns a malformed id lookup into a miss; such an id cannot name a row.
func txError(err error) error {
	if db.IsInvalidText(err) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}
