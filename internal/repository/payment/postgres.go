package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

const selectPayment = `
SELECT id::text, order_id::text, amount, method, status, COALESCE(session_id, ''), COALESCE(payment_intent_id, ''),
       gateway_metadata, created_at, updated_at
FROM payments
`

func (r *postgresRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.get(ctx, selectPayment+`WHERE order_id = $1`, orderID)
}

func (r *postgresRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	return r.get(ctx, selectPayment+`WHERE session_id = $1`, sessionID)
}

func (r *postgresRepo) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	return r.get(ctx, selectPayment+`WHERE payment_intent_id = $1 ORDER BY updated_at DESC LIMIT 1`, intentID)
}

func (r *postgresRepo) get(ctx context.Context, q, key string) (*domain.Payment, error) {
	var (
		p      domain.Payment
		status string
		meta   []byte
	)
	err := r.q.QueryRow(ctx, q, key).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &status, &p.SessionID, &p.IntentID, &meta, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("payment repo: get key=%s error=%v", key, err)
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Stripe); err != nil {
			r.logger.Printf("payment repo: decode metadata id=%s err=%v", p.ID, err)
			return nil, err
		}
	}
	return &p, nil
}

func (r *postgresRepo) Save(ctx context.Context, p *domain.Payment) error {
	meta, err := json.Marshal(p.Stripe)
	if err != nil {
		return fmt.Errorf("encode gateway metadata: %w", err)
	}
	const q = `
INSERT INTO payments (order_id, amount, method, status, session_id, payment_intent_id, gateway_metadata)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
ON CONFLICT (order_id) DO UPDATE SET
    amount = EXCLUDED.amount,
    method = EXCLUDED.method,
    status = EXCLUDED.status,
    session_id = EXCLUDED.session_id,
    payment_intent_id = EXCLUDED.payment_intent_id,
    gateway_metadata = EXCLUDED.gateway_metadata,
    updated_at = now()
RETURNING id::text, created_at, updated_at
`
	err = r.q.QueryRow(ctx, q, p.OrderID, p.Amount, p.Method, string(p.Status), p.SessionID, p.IntentID, meta).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		r.logger.Printf("payment repo: save order_id=%s error=%v", p.OrderID, err)
		return err
	}
	r.logger.Printf("payment repo: saved order_id=%s status=%s session=%s", p.OrderID, p.Status, p.SessionID)
	return nil
}
