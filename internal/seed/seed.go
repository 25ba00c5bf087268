package seed

import (
	"context"
	"fmt"

	"storefront/internal/db"

	"github.com/shopspring/decimal"
)

// Fixed ids keep the seed idempotent and let manual requests reuse them.
const (
	DemoUserID    = "11111111-1111-4111-8111-111111111111"
	DemoAddressID = "22222222-2222-4222-8222-222222222222"
)

type productSeed struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

var products = []productSeed{
	{
		SKU:         "SKU-DEMO-PHONE",
		Name:        "Smartphone Demo",
		Description: "Demo handset used in checkout walkthroughs",
		Price:       decimal.RequireFromString("899.90"),
		Stock:       5,
	},
	{
		SKU:         "SKU-DEMO-CASE",
		Name:        "Capa Protetora",
		Description: "Silicone case for the demo handset",
		Price:       decimal.RequireFromString("49.90"),
		Stock:       20,
	},
	{
		SKU:         "SKU-DEMO-CABLE",
		Name:        "Cabo USB-C",
		Description: "Last unit, handy for contention tests",
		Price:       decimal.RequireFromString("29.90"),
		Stock:       1,
	},
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, q db.Querier) error {
	if err := ensureUser(ctx, q); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := ensureAddress(ctx, q); err != nil {
		return fmt.Errorf("ensure address: %w", err)
	}
	for _, p := range products {
		if err := upsertProduct(ctx, q, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	return nil
}

func ensureUser(ctx context.Context, q db.Querier) error {
	const stmt = `
INSERT INTO users (id, email, name)
VALUES ($1, 'demo@storefront.local', 'Demo Buyer')
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
`
	_, err := q.Exec(ctx, stmt, DemoUserID)
	return err
}

func ensureAddress(ctx context.Context, q db.Querier) error {
	const stmt = `
INSERT INTO addresses (id, user_id, street, number, city, state, postal_code, country)
VALUES ($1, $2, 'Avenida Paulista', '1000', 'São Paulo', 'SP', '01310-100', 'BR')
ON CONFLICT (id) DO NOTHING
`
	_, err := q.Exec(ctx, stmt, DemoAddressID, DemoUserID)
	return err
}

// upsertProduct refreshes catalog fields but never overwrites live stock.
func upsertProduct(ctx context.Context, q db.Querier, p productSeed) error {
	const stmt = `
INSERT INTO products (sku, name, description, price, stock, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    active = TRUE,
    updated_at = now()
`
	_, err := q.Exec(ctx, stmt, p.SKU, p.Name, p.Description, p.Price, p.Stock)
	return err
}
