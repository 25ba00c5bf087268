package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock changes only through the inventory ledger.
type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
