package domain

import "time"

// Cart holds a user's pending selections. It never reserves stock.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
}

type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
}

func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}
