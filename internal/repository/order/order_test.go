package order

import (
	"context"
	"errors"
	"os"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func TestPostgres_CreateGetAndCompareAndSet(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE order_items, payments, orders, products, addresses, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	var userID, addressID, productID string
	if err := pool.QueryRow(ctx, `INSERT INTO users (email) VALUES ('o@example.com') RETURNING id::text`).Scan(&userID); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO addresses (user_id, street, city) VALUES ($1, 'Rua A', 'Recife') RETURNING id::text`, userID).Scan(&addressID); err != nil {
		t.Fatalf("insert address: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO products (sku, name, price, stock) VALUES ('SKU1', 'Phone', 899.90, 5) RETURNING id::text`).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	repo := NewPostgres(pool, nil)
	seq, err := repo.NextSequence(ctx)
	if err != nil || seq < 1 {
		t.Fatalf("NextSequence: %d err=%v", seq, err)
	}

	price := decimal.RequireFromString("899.90")
	o := &domain.Order{
		Number:    "ORD-2026-0001",
		UserID:    userID,
		AddressID: addressID,
		Status:    domain.OrderPending,
		Total:     price,
		Items:     []domain.OrderItem{{ProductID: productID, ProductName: "Phone", SKU: "SKU1", Quantity: 1, UnitPrice: price}},
	}
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.ID == "" || o.Items[0].ID == "" {
		t.Fatalf("expected ids to be assigned: %+v", o)
	}

	dup := *o
	dup.Items = nil
	if err := repo.Create(ctx, &dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate order number to fail, got %v", err)
	}

	ok, err := repo.CompareAndSetStatus(ctx, o.ID, domain.OrderPending, domain.OrderProcessing)
	if err != nil || !ok {
		t.Fatalf("CompareAndSetStatus: ok=%v err=%v", ok, err)
	}
	ok, err = repo.CompareAndSetStatus(ctx, o.ID, domain.OrderPending, domain.OrderCancelled)
	if err != nil || ok {
		t.Fatalf("expected stale compare to be skipped: ok=%v err=%v", ok, err)
	}

	got, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.OrderProcessing || len(got.Items) != 1 || !got.Total.Equal(price) {
		t.Fatalf("unexpected order %+v", got)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}
