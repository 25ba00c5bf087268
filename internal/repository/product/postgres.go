package product

import (
	"context"
	"errors"
	"io"
	"log"

	"storefront/internal/db"
	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
)

type postgresRepo struct {
	q      db.Querier
	logger *log.Logger
}

// NewPostgres returns a Repository running its statements on q, a pool or a transaction.
func NewPostgres(q db.Querier, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

const selectProduct = `
SELECT id::text, sku, name, description, price, stock, active, created_at, updated_at
FROM products
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, selectProduct+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Printf("product repo: get id=%s not found", id)
		} else {
			r.logger.Printf("product repo: get id=%s error=%v", id, err)
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, selectProduct+`WHERE sku = $1`, sku))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Printf("product repo: get sku=%s error=%v", sku, err)
	}
	return p, err
}

func (r *postgresRepo) ReserveStock(ctx context.Context, id string, qty int) error {
	const q = `
UPDATE products
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
RETURNING stock
`
	var remaining int
	err := r.q.QueryRow(ctx, q, id, qty).Scan(&remaining)
	if err == nil {
		r.logger.Printf("product repo: reserved id=%s qty=%d remaining=%d", id, qty, remaining)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Printf("product repo: reserve id=%s qty=%d error=%v", id, qty, err)
		return err
	}

	// No row matched: either the product is gone or the guard rejected the decrement.
	var (
		name      string
		available int
	)
	if err := r.q.QueryRow(ctx, `SELECT name, stock FROM products WHERE id = $1`, id).Scan(&name, &available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	r.logger.Printf("product repo: reserve id=%s qty=%d rejected available=%d", id, qty, available)
	return &domain.InsufficientStockError{ProductID: id, Name: name, Available: available, Requested: qty}
}

func (r *postgresRepo) ReleaseStock(ctx context.Context, id string, qty int) error {
	cmd, err := r.q.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, qty)
	if err != nil {
		r.logger.Printf("product repo: release id=%s qty=%d error=%v", id, qty, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Printf("product repo: released id=%s qty=%d", id, qty)
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
