package cart

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// Service manages the user's cart. Prices shown here are live product prices;
// checkout snapshots them into the order.
type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// View is a cart priced against the current catalog.
type View struct {
	ID       string
	UserID   string
	Lines    []Line
	Subtotal decimal.Decimal
}

type Line struct {
	ItemID      string
	ProductID   string
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

type AddItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ChangeQuantityInput struct {
	ItemID   string `json:"-"`
	Quantity int    `json:"quantity"`
}

// Get returns the user's cart; a user without one gets an empty view.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	var v *View
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		v, err = view(ctx, tx, userID)
		return err
	})
	return v, err
}

// AddItem adds quantity of an active product, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, userID string, in AddItemInput) (*View, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return nil, domain.Invalid("productId", "required")
	}
	if in.Quantity <= 0 {
		return nil, domain.Invalid("quantity", "must be positive")
	}

	var v *View
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.Products().GetByID(ctx, productID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Invalid("productId", "product not found")
			}
			return err
		}
		if !p.Active {
			return domain.Invalid("productId", "product is not available")
		}
		if err := tx.Carts().AddItem(ctx, userID, p.ID, in.Quantity); err != nil {
			return err
		}
		v, err = view(ctx, tx, userID)
		return err
	})
	return v, err
}

// ChangeQuantity sets a line's quantity; zero or less removes the line.
func (s *Service) ChangeQuantity(ctx context.Context, userID string, in ChangeQuantityInput) (*View, error) {
	itemID := strings.TrimSpace(in.ItemID)
	if itemID == "" {
		return nil, domain.Invalid("itemId", "required")
	}

	var v *View
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.Carts().ChangeItemQuantity(ctx, c.ID, itemID, in.Quantity); err != nil {
			return err
		}
		v, err = view(ctx, tx, userID)
		return err
	})
	return v, err
}

func view(ctx context.Context, tx store.Tx, userID string) (*View, error) {
	c, err := tx.Carts().GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &View{UserID: userID, Lines: []Line{}, Subtotal: decimal.Zero}, nil
		}
		return nil, err
	}

	v := &View{ID: c.ID, UserID: c.UserID, Lines: make([]Line, 0, len(c.Items)), Subtotal: decimal.Zero}
	for _, it := range c.Items {
		p, err := tx.Products().GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		total := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		v.Lines = append(v.Lines, Line{
			ItemID:      it.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			LineTotal:   total,
		})
		v.Subtotal = v.Subtotal.Add(total)
	}
	return v, nil
}
