// Package checkout converts carts into reserved orders and opens payment sessions for them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/service/inventory"
	orderservice "storefront/internal/service/order"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// Config holds pricing settings applied to every order.
type Config struct {
	Currency     string
	ShippingCost decimal.Decimal
}

type Service struct {
	store     store.Store
	ledger    *inventory.Ledger
	lifecycle *orderservice.Lifecycle
	gateway   gateway.Gateway
	events    events.Publisher
	cfg       Config
	now       func() time.Time
	logger    *log.Logger
}

func New(st store.Store, ledger *inventory.Ledger, lifecycle *orderservice.Lifecycle, gw gateway.Gateway, pub events.Publisher, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "brl"
	}
	return &Service{
		store:     st,
		ledger:    ledger,
		lifecycle: lifecycle,
		gateway:   gw,
		events:    pub,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

type CreateOrderInput struct {
	UserID    string
	AddressID string
	Notes     string
}

// CreateOrder turns the user's cart into a PENDING order and reserves its stock.
// Nothing is persisted unless every item could be reserved.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, domain.Invalid("userId", "required")
	}
	if strings.TrimSpace(in.AddressID) == "" {
		return nil, domain.Invalid("addressId", "required")
	}

	var o *domain.Order
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		addr, err := tx.Customers().GetAddress(ctx, in.AddressID)
		if err != nil {
			return err
		}
		owned, err := tx.Customers().AddressBelongsToUser(ctx, addr.ID, in.UserID)
		if err != nil {
			return err
		}
		if !owned {
			return domain.ErrForbidden
		}

		cart, err := tx.Carts().GetByUser(ctx, in.UserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if cart.Empty() {
			return domain.ErrEmptyCart
		}

		items := make([]domain.OrderItem, 0, len(cart.Items))
		for _, ci := range cart.Items {
			p, err := tx.Products().GetByID(ctx, ci.ProductID)
			if err != nil {
				return fmt.Errorf("product %s: %w", ci.ProductID, err)
			}
			if !p.Active {
				return domain.Invalid("items", fmt.Sprintf("product %s is not available", p.Name))
			}
			if ci.Quantity > p.Stock {
				return &domain.InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock, Requested: ci.Quantity}
			}
			items = append(items, domain.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				SKU:         p.SKU,
				Quantity:    ci.Quantity,
				UnitPrice:   p.Price,
			})
		}

		seq, err := tx.Orders().NextSequence(ctx)
		if err != nil {
			return err
		}
		o = &domain.Order{
			Number:       orderNumber(s.now(), seq),
			UserID:       in.UserID,
			AddressID:    addr.ID,
			Status:       domain.OrderPending,
			ShippingCost: s.cfg.ShippingCost,
			Discount:     decimal.Zero,
			Notes:        strings.TrimSpace(in.Notes),
			Items:        items,
		}
		o.Total = o.Subtotal().Add(o.ShippingCost).Sub(o.Discount)
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}

		if err := s.ledger.ReserveAll(ctx, tx.Products(), inventory.OrderLines(o.Items)); err != nil {
			return err
		}
		if err := tx.Carts().Clear(ctx, cart.ID); err != nil {
			return err
		}
		o.Address = addr
		return nil
	})
	if err != nil {
		s.logger.Printf("checkout: create order user_id=%s error=%v", in.UserID, err)
		return nil, err
	}

	s.logger.Printf("checkout: order created order_id=%s number=%s total=%s", o.ID, o.Number, o.Total.StringFixed(2))
	s.events.Publish(ctx, events.OrderCreated, o.ID, createdPayload(o))
	return o, nil
}

type OpenSessionInput struct {
	UserID     string
	OrderID    string
	SuccessURL string
	CancelURL  string
}

// SessionResult is where the buyer is redirected to pay.
type SessionResult struct {
	SessionID string
	URL       string
}

// OpenPaymentSession creates a gateway checkout session for a PENDING order and
// moves it to PROCESSING. Local state changes only after the gateway accepted the session.
func (s *Service) OpenPaymentSession(ctx context.Context, in OpenSessionInput) (*SessionResult, error) {
	if err := validateRedirect("successUrl", in.SuccessURL); err != nil {
		return nil, err
	}
	if err := validateRedirect("cancelUrl", in.CancelURL); err != nil {
		return nil, err
	}

	var (
		o    *domain.Order
		user *domain.User
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.Orders().GetByID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != in.UserID {
			return domain.ErrNotFound
		}
		if err := payable(ctx, tx, o); err != nil {
			return err
		}
		user, err = tx.Customers().GetUser(ctx, o.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	req := gateway.SessionRequest{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		UserID:         o.UserID,
		CustomerEmail:  user.Email,
		Currency:       s.cfg.Currency,
		ShippingAmount: domain.ToMinorUnits(o.ShippingCost),
		SuccessURL:     in.SuccessURL,
		CancelURL:      in.CancelURL,
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, gateway.LineItem{
			Name:       it.ProductName,
			UnitAmount: domain.ToMinorUnits(it.UnitPrice),
			Quantity:   int64(it.Quantity),
		})
	}

	sess, err := s.gateway.OpenCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Printf("checkout: open session order_id=%s gateway error=%v", o.ID, err)
		return nil, &domain.UpstreamError{Op: "create checkout session", Err: err}
	}

	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		locked, err := tx.Orders().GetForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := payable(ctx, tx, locked); err != nil {
			return err
		}

		p, err := tx.Payments().GetByOrderID(ctx, o.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			p = &domain.Payment{OrderID: o.ID, Method: domain.PaymentMethodCard}
		}
		p.Amount = locked.Total
		p.Status = domain.PaymentPending
		p.SessionID = sess.ID
		p.IntentID = ""
		p.Stripe = domain.StripeDetails{SessionID: sess.ID}
		if err := tx.Payments().Save(ctx, p); err != nil {
			return err
		}

		_, err = s.lifecycle.Transition(ctx, tx, locked, domain.OrderProcessing)
		return err
	})
	if err != nil {
		// The session was opened upstream but is unusable; it expires on its own.
		s.logger.Printf("checkout: record session order_id=%s session=%s error=%v", o.ID, sess.ID, err)
		return nil, err
	}

	s.logger.Printf("checkout: session opened order_id=%s session=%s", o.ID, sess.ID)
	s.events.Publish(ctx, events.OrderStatusChanged, o.ID, events.StatusChangedPayload{
		OrderID: o.ID,
		From:    string(domain.OrderPending),
		To:      string(domain.OrderProcessing),
		Cause:   "checkout_session",
	})
	return &SessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func payable(ctx context.Context, tx store.Tx, o *domain.Order) error {
	if o.Status != domain.OrderPending {
		return domain.ErrNotPending
	}
	p, err := tx.Payments().GetByOrderID(ctx, o.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if p.Status == domain.PaymentPaid {
		return domain.ErrAlreadyPaid
	}
	return nil
}

func orderNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%d-%04d", now.Year(), seq)
}

func validateRedirect(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.Invalid(field, "must be an absolute URL")
	}
	return nil
}

func createdPayload(o *domain.Order) events.OrderCreatedPayload {
	p := events.OrderCreatedPayload{
		OrderID: o.ID,
		Number:  o.Number,
		UserID:  o.UserID,
		Total:   o.Total.StringFixed(2),
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, events.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return p
}
