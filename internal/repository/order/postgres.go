package order

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

func NewPostgres(q db.Querier, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

func (r *postgresRepo) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	const q = `
INSERT INTO orders (order_number, user_id, address_id, status, total, shipping_cost, discount, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text, created_at, updated_at
`
	err := r.q.QueryRow(ctx, q, o.Number, o.UserID, o.AddressID, string(o.Status), o.Total, o.ShippingCost, o.Discount, o.Notes).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: create number=%s error=%v", o.Number, err)
		return err
	}

	const itemQ = `
INSERT INTO order_items (order_id, product_id, product_name, sku, quantity, unit_price, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text
`
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := r.q.QueryRow(ctx, itemQ, o.ID, it.ProductID, it.ProductName, it.SKU, it.Quantity, it.UnitPrice, i).Scan(&it.ID); err != nil {
			r.logger.Printf("order repo: create item order_id=%s product_id=%s error=%v", o.ID, it.ProductID, err)
			return err
		}
	}
	r.logger.Printf("order repo: created id=%s number=%s items=%d", o.ID, o.Number, len(o.Items))
	return nil
}

const selectOrder = `
SELECT id::text, order_number, user_id::text, address_id::text, status, total, shipping_cost, discount, notes, created_at, updated_at
FROM orders
WHERE id = $1
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, selectOrder, id)
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, selectOrder+"FOR UPDATE", id)
}

func (r *postgresRepo) get(ctx context.Context, q, id string) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := r.q.QueryRow(ctx, q, id).Scan(&o.ID, &o.Number, &o.UserID, &o.AddressID, &status, &o.Total, &o.ShippingCost, &o.Discount, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("order repo: get id=%s not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get id=%s error=%v", id, err)
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	rows, err := r.q.Query(ctx, `
SELECT id::text, order_id::text, product_id::text, product_name, sku, quantity, unit_price
FROM order_items
WHERE order_id = $1
ORDER BY position ASC
`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.SKU, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepo) CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
`, id, string(from), string(to))
	if err != nil {
		r.logger.Printf("order repo: status id=%s %s->%s error=%v", id, from, to, err)
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		r.logger.Printf("order repo: status id=%s %s->%s skipped, status changed", id, from, to)
		return false, nil
	}
	r.logger.Printf("order repo: status id=%s %s->%s", id, from, to)
	return true, nil
}

func (r *postgresRepo) UpdateNotes(ctx context.Context, id, notes string) error {
	cmd, err := r.q.Exec(ctx, `UPDATE orders SET notes = $2, updated_at = now() WHERE id = $1`, id, notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
