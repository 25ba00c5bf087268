// Package inventory is the only writer of product stock.
package inventory

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"

	"storefront/internal/domain"
)

// StockRepo applies single-product stock movements inside the caller's unit of work.
type StockRepo interface {
	ReserveStock(ctx context.Context, productID string, qty int) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
}

// Line is a quantity of one product.
type Line struct {
	ProductID string
	Quantity  int
}

// Ledger reserves and releases stock.
type Ledger struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Ledger{logger: logger}
}

// Reserve decrements stock, failing with *domain.InsufficientStockError rather than going negative.
func (l *Ledger) Reserve(ctx context.Context, repo StockRepo, productID string, qty int) error {
	if qty <= 0 {
		return domain.Invalid("quantity", "must be positive")
	}
	return repo.ReserveStock(ctx, productID, qty)
}

// Release increments stock unconditionally.
func (l *Ledger) Release(ctx context.Context, repo StockRepo, productID string, qty int) error {
	if qty <= 0 {
		return domain.Invalid("quantity", "must be positive")
	}
	return repo.ReleaseStock(ctx, productID, qty)
}

// ReserveAll reserves every line in product id order. The first failure is
// returned and the caller must discard the unit of work.
func (l *Ledger) ReserveAll(ctx context.Context, repo StockRepo, lines []Line) error {
	for _, ln := range normalize(lines) {
		if err := l.Reserve(ctx, repo, ln.ProductID, ln.Quantity); err != nil {
			l.logger.Printf("inventory: reserve product_id=%s qty=%d failed: %v", ln.ProductID, ln.Quantity, err)
			return err
		}
	}
	return nil
}

// ReleaseAll returns every line to stock in product id order.
func (l *Ledger) ReleaseAll(ctx context.Context, repo StockRepo, lines []Line) error {
	for _, ln := range normalize(lines) {
		if err := l.Release(ctx, repo, ln.ProductID, ln.Quantity); err != nil {
			return fmt.Errorf("release product %s: %w", ln.ProductID, err)
		}
		l.logger.Printf("inventory: released product_id=%s qty=%d", ln.ProductID, ln.Quantity)
	}
	return nil
}

// OrderLines converts order items into ledger lines.
func OrderLines(items []domain.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

// normalize merges repeated products and sorts by id so concurrent callers lock rows in the same order.
func normalize(lines []Line) []Line {
	merged := make(map[string]int, len(lines))
	for _, ln := range lines {
		merged[ln.ProductID] += ln.Quantity
	}
	out := make([]Line, 0, len(merged))
	for id, qty := range merged {
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
