package httpserver

import (
	"time"

	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"

	"github.com/shopspring/decimal"
)

// Amounts are rendered as fixed two-decimal strings.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
}

type addressResponse struct {
	ID         string `json:"id"`
	Street     string `json:"street"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type paymentResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Method    string    `json:"method"`
	Amount    string    `json:"amount"`
	SessionID string    `json:"sessionId,omitempty"`
	RefundID  string    `json:"refundId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	Number       string              `json:"orderNumber"`
	UserID       string              `json:"userId"`
	Status       string              `json:"status"`
	Subtotal     string              `json:"subtotal"`
	ShippingCost string              `json:"shippingCost"`
	Discount     string              `json:"discount"`
	Total        string              `json:"total"`
	Notes        string              `json:"notes,omitempty"`
	Items        []orderItemResponse `json:"items"`
	Address      *addressResponse    `json:"address,omitempty"`
	Payment      *paymentResponse    `json:"payment,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

func toOrderResponse(o *domain.Order, p *domain.Payment) orderResponse {
	out := orderResponse{
		ID:           o.ID,
		Number:       o.Number,
		UserID:       o.UserID,
		Status:       string(o.Status),
		Subtotal:     money(o.Subtotal()),
		ShippingCost: money(o.ShippingCost),
		Discount:     money(o.Discount),
		Total:        money(o.Total),
		Notes:        o.Notes,
		Items:        make([]orderItemResponse, 0, len(o.Items)),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
			LineTotal:   money(it.LineTotal()),
		})
	}
	if a := o.Address; a != nil {
		out.Address = &addressResponse{
			ID:         a.ID,
			Street:     a.Street,
			Number:     a.Number,
			Complement: a.Complement,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	if p != nil {
		out.Payment = &paymentResponse{
			ID:        p.ID,
			Status:    string(p.Status),
			Method:    p.Method,
			Amount:    money(p.Amount),
			SessionID: p.SessionID,
			RefundID:  p.Stripe.RefundID,
			UpdatedAt: p.UpdatedAt,
		}
	}
	return out
}

type cartLineResponse struct {
	ItemID      string `json:"itemId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
}

type cartResponse struct {
	ID       string             `json:"id,omitempty"`
	UserID   string             `json:"userId"`
	Items    []cartLineResponse `json:"items"`
	Subtotal string             `json:"subtotal"`
}

func toCartResponse(v *cartsvc.View) cartResponse {
	out := cartResponse{ID: v.ID, UserID: v.UserID, Items: make([]cartLineResponse, 0, len(v.Lines)), Subtotal: money(v.Subtotal)}
	for _, l := range v.Lines {
		out.Items = append(out.Items, cartLineResponse{
			ItemID:      l.ItemID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   money(l.UnitPrice),
			LineTotal:   money(l.LineTotal),
		})
	}
	return out
}
