package cart

import (
	"context"
	"errors"
	"io"
	"log"

	"storefront/internal/db"
	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.q.QueryRow(ctx, `
SELECT id::text, user_id::text, created_at
FROM carts
WHERE user_id = $1
`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.q.Query(ctx, `
SELECT id::text, cart_id::text, product_id::text, quantity
FROM cart_items
WHERE cart_id = $1
ORDER BY created_at ASC
`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *postgresRepo) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	const q = `
WITH c AS (
    INSERT INTO carts (user_id) VALUES ($1)
    ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
    RETURNING id
)
INSERT INTO cart_items (cart_id, product_id, quantity)
SELECT id, $2, $3 FROM c
ON CONFLICT (cart_id, product_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity
`
	if _, err := r.q.Exec(ctx, q, userID, productID, quantity); err != nil {
		r.logger.Printf("cart repo: add user_id=%s product_id=%s error=%v", userID, productID, err)
		return err
	}
	return nil
}

func (r *postgresRepo) ChangeItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	var (
		cmd pgconn.CommandTag
		err error
	)
	if quantity <= 0 {
		cmd, err = r.q.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	} else {
		cmd, err = r.q.Exec(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3`, quantity, itemID, cartID)
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Clear(ctx context.Context, cartID string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		r.logger.Printf("cart repo: clear cart_id=%s error=%v", cartID, err)
		return err
	}
	r.logger.Printf("cart repo: cleared cart_id=%s items=%d", cartID, cmd.RowsAffected())
	return nil
}
