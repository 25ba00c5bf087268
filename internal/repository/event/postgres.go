package event

import (
	"context"

	"storefront/internal/db"
	"storefront/internal/domain"
)

type postgresRepo struct {
	q db.Querier
}

func NewPostgres(q db.Querier) Repository {
	return &postgresRepo{q: q}
}

func (r *postgresRepo) Record(ctx context.Context, eventID, kind string) error {
	const q = `
INSERT INTO processed_events (event_id, kind)
VALUES ($1, $2)
`
	if _, err := r.q.Exec(ctx, q, eventID, kind); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}
