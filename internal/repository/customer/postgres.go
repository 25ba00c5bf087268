package customer

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

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(q db.Querier, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

func (r *postgresRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, `
SELECT id::text, email, name, created_at
FROM users
WHERE id = $1
`, id).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("customer repo: user id=%s not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("customer repo: user id=%s error=%v", id, err)
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepo) GetAddress(ctx context.Context, id string) (*domain.Address, error) {
	var a domain.Address
	err := r.q.QueryRow(ctx, `
SELECT id::text, user_id::text, street, number, complement, city, state, postal_code, country
FROM addresses
WHERE id = $1
`, id).Scan(&a.ID, &a.UserID, &a.Street, &a.Number, &a.Complement, &a.City, &a.State, &a.PostalCode, &a.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("customer repo: address id=%s error=%v", id, err)
		return nil, err
	}
	return &a, nil
}

func (r *postgresRepo) AddressBelongsToUser(ctx context.Context, addressID, userID string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`, addressID, userID).Scan(&ok)
	return ok, err
}
