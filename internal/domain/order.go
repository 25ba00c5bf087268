package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a node of the order state machine.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderPaid       OrderStatus = "PAID"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

var validNext = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderPaid, OrderPending, OrderCancelled},
	OrderPaid:       {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// ParseOrderStatus accepts a status name in any case.
func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(v)))
	if _, ok := validNext[s]; !ok {
		return "", Invalid("status", "unknown order status "+v)
	}
	return s, nil
}

// Order is the aggregate created at checkout. Total is fixed at creation.
type Order struct {
	ID           string
	Number       string
	UserID       string
	AddressID    string
	Status       OrderStatus
	Total        decimal.Decimal
	ShippingCost decimal.Decimal
	Discount     decimal.Decimal
	Notes        string
	Items        []OrderItem
	Address      *Address
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem is an immutable snapshot of a cart line at purchase time.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// LineTotal is UnitPrice times Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal sums the line totals.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// AppendNote adds line on its own line after any existing notes.
func (o *Order) AppendNote(line string) {
	if o.Notes == "" {
		o.Notes = line
		return
	}
	o.Notes = o.Notes + "\n" + line
}
