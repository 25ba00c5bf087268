// Package stripegw implements gateway.Gateway and gateway.EventVerifier on Stripe Checkout.
package stripegw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/gateway"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultShippingLabel = "Frete padrão"
	sessionIDPlaceholder = "session_id={CHECKOUT_SESSION_ID}"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	ShippingLabel string
	// Backends overrides the Stripe API endpoints; nil uses Stripe's.
	Backends *stripe.Backends
}

// Gateway talks to the Stripe API.
type Gateway struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
	shippingLabel string
	logger        *log.Logger
}

func New(cfg Config, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ShippingLabel == "" {
		cfg.ShippingLabel = defaultShippingLabel
	}
	return &Gateway{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
		shippingLabel: cfg.ShippingLabel,
		logger:        logger,
	}
}

func (g *Gateway) OpenCheckoutSession(ctx context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(withSessionID(req.SuccessURL)),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
		ShippingOptions: []*stripe.CheckoutSessionShippingOptionParams{{
			ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
				Type:        stripe.String("fixed_amount"),
				DisplayName: stripe.String(g.shippingLabel),
				FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
					Amount:   stripe.Int64(req.ShippingAmount),
					Currency: stripe.String(req.Currency),
				},
			},
		}},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(it.Name)}
		if it.Description != "" {
			product.Description = stripe.String(it.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(it.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(it.UnitAmount),
				ProductData: product,
			},
		})
	}
	params.AddMetadata("orderId", req.OrderID)
	params.AddMetadata("orderNumber", req.OrderNumber)
	params.AddMetadata("userId", req.UserID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Printf("stripe: create session order_id=%s error=%v", req.OrderID, err)
		return nil, err
	}
	g.logger.Printf("stripe: created session id=%s order_id=%s", s.ID, req.OrderID)
	return toSession(s), nil
}

func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (*gateway.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		g.logger.Printf("stripe: get session id=%s error=%v", sessionID, err)
		return nil, err
	}
	return toSession(s), nil
}

func (g *Gateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	// Stripe treats a missing amount as a full refund.
	if req.Amount <= 0 {
		return nil, domain.Invalid("amount", fmt.Sprintf("refund amount must be positive, got %d", req.Amount))
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Reason:        stripe.String(string(req.Reason)),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.OrderID != "" {
		params.AddMetadata("orderId", req.OrderID)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		g.logger.Printf("stripe: refund intent=%s error=%v", req.PaymentIntentID, err)
		return nil, err
	}
	g.logger.Printf("stripe: refund id=%s intent=%s amount=%d status=%s", r.ID, req.PaymentIntentID, r.Amount, r.Status)
	return &gateway.Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)}, nil
}

// VerifyEvent checks the Stripe-Signature header before decoding anything.
func (g *Gateway) VerifyEvent(payload []byte, signature string) (*gateway.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	out := &gateway.Event{ID: ev.ID, Kind: gateway.EventKind(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	switch out.Kind {
	case gateway.CheckoutCompleted, gateway.CheckoutExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		sess := toSession(&s)
		out.SessionID = sess.ID
		out.OrderID = sess.OrderID
		out.PaymentIntentID = sess.PaymentIntentID
		out.CustomerID = sess.CustomerID
	case gateway.PaymentIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		out.PaymentIntentID = pi.ID
		out.OrderID = pi.Metadata["orderId"]
	case gateway.ChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.OrderID = ch.Metadata["orderId"]
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) *gateway.Session {
	out := &gateway.Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        gateway.SessionStatus(s.Status),
		PaymentStatus: gateway.SessionPaymentStatus(s.PaymentStatus),
		OrderID:       s.Metadata["orderId"],
	}
	if out.OrderID == "" {
		out.OrderID = s.ClientReferenceID
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func withSessionID(successURL string) string {
	if strings.Contains(successURL, "?") {
		return successURL + "&" + sessionIDPlaceholder
	}
	return successURL + "?" + sessionIDPlaceholder
}
