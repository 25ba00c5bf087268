package stripegw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/gateway"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestVerifyEventCheckoutCompleted(t *testing.T) {
	g := New(Config{WebhookSecret: testSecret}, nil)
	header, body := signed(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_intent": "pi_123",
			"customer": "cus_9",
			"metadata": {"orderId": "order-1"}
		}}
	}`)

	ev, err := g.VerifyEvent(body, header)
	if err != nil {
		t.Fatalf("VerifyEvent: %v", err)
	}
	if ev.ID != "evt_1" || ev.Kind != gateway.CheckoutCompleted {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.SessionID != "cs_test_1" || ev.PaymentIntentID != "pi_123" || ev.CustomerID != "cus_9" || ev.OrderID != "order-1" {
		t.Fatalf("unexpected decoded fields %+v", ev)
	}
}

func TestVerifyEventChargeRefunded(t *testing.T) {
	g := New(Config{WebhookSecret: testSecret}, nil)
	header, body := signed(t, `{
		"id": "evt_2",
		"object": "event",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "object": "charge", "payment_intent": "pi_123"}}
	}`)

	ev, err := g.VerifyEvent(body, header)
	if err != nil {
		t.Fatalf("VerifyEvent: %v", err)
	}
	if ev.Kind != gateway.ChargeRefunded || ev.PaymentIntentID != "pi_123" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestVerifyEventUnknownKindPassesThrough(t *testing.T) {
	g := New(Config{WebhookSecret: testSecret}, nil)
	header, body := signed(t, `{"id": "evt_3", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`)

	ev, err := g.VerifyEvent(body, header)
	if err != nil {
		t.Fatalf("VerifyEvent: %v", err)
	}
	if ev.Kind != "customer.created" {
		t.Fatalf("expected raw kind, got %s", ev.Kind)
	}
}

func TestVerifyEventRejectsBadSignature(t *testing.T) {
	g := New(Config{WebhookSecret: "whsec_other"}, nil)
	header, body := signed(t, `{"id": "evt_1", "object": "event", "type": "checkout.session.completed", "data": {"object": {}}}`)

	_, err := g.VerifyEvent(body, header)
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if _, err := g.VerifyEvent(body, ""); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected authentication error for missing header, got %v", err)
	}
}

func TestOpenCheckoutSessionSendsLineItems(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cs_test_1", "object": "checkout.session", "url": "https://checkout.stripe.com/c/pay/cs_test_1", "status": "open", "payment_status": "unpaid"}`))
	}))
	defer srv.Close()

	g := New(Config{SecretKey: "sk_test_123", Backends: testBackends(srv.URL)}, nil)
	s, err := g.OpenCheckoutSession(context.Background(), gateway.SessionRequest{
		OrderID:        "order-1",
		OrderNumber:    "ORD-2026-0001",
		UserID:         "user-1",
		Currency:       "brl",
		Items:          []gateway.LineItem{{Name: "Phone", UnitAmount: 89990, Quantity: 1}},
		ShippingAmount: 0,
		SuccessURL:     "https://shop.example/success",
		CancelURL:      "https://shop.example/cart",
	})
	if err != nil {
		t.Fatalf("OpenCheckoutSession: %v", err)
	}
	if s.ID != "cs_test_1" || s.URL == "" || s.Status != gateway.SessionOpen {
		t.Fatalf("unexpected session %+v", s)
	}

	expect := map[string]string{
		"mode":                                   "payment",
		"metadata[orderId]":                      "order-1",
		"metadata[orderNumber]":                  "ORD-2026-0001",
		"line_items[0][price_data][unit_amount]": "89990",
		"line_items[0][price_data][currency]":    "brl",
		"line_items[0][quantity]":                "1",
		"success_url":                            "https://shop.example/success?session_id={CHECKOUT_SESSION_ID}",
	}
	if got := form["shipping_options[0][shipping_rate_data][display_name]"]; got != "Frete padrão" {
		t.Fatalf("unexpected shipping label %q", got)
	}
	for k, v := range expect {
		if form[k] != v {
			t.Fatalf("form %s = %q, want %q", k, form[k], v)
		}
	}
}

func TestRefundSendsIdempotencyKey(t *testing.T) {
	var key, amount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		_ = r.ParseForm()
		amount = r.PostForm.Get("amount")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "re_1", "object": "refund", "amount": 5000, "status": "succeeded"}`))
	}))
	defer srv.Close()

	g := New(Config{SecretKey: "sk_test_123", Backends: testBackends(srv.URL)}, nil)
	r, err := g.Refund(context.Background(), gateway.RefundRequest{
		PaymentIntentID: "pi_123",
		Amount:          5000,
		Reason:          gateway.ReasonRequestedByCustomer,
		IdempotencyKey:  "refund-order-1",
	})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if r.ID != "re_1" || r.Status != "succeeded" || r.Amount != 5000 {
		t.Fatalf("unexpected refund %+v", r)
	}
	if key != "refund-order-1" || amount != "5000" {
		t.Fatalf("unexpected request key=%q amount=%q", key, amount)
	}
}

func TestRefundRejectsNonPositiveAmount(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "re_1", "object": "refund", "amount": 100000, "status": "succeeded"}`))
	}))
	defer srv.Close()

	g := New(Config{SecretKey: "sk_test_123", Backends: testBackends(srv.URL)}, nil)
	for _, amount := range []int64{0, -1} {
		_, err := g.Refund(context.Background(), gateway.RefundRequest{
			PaymentIntentID: "pi_123",
			Amount:          amount,
			Reason:          gateway.ReasonRequestedByCustomer,
		})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("amount %d: expected validation error, got %v", amount, err)
		}
	}
	if hits != 0 {
		t.Fatalf("expected no request to reach stripe, got %d", hits)
	}
}

func TestWithSessionID(t *testing.T) {
	if got := withSessionID("https://x/ok?a=1"); got != "https://x/ok?a=1&session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("unexpected url %s", got)
	}
}

func testBackends(url string) *stripe.Backends {
	b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &stripe.Backends{API: b, Connect: b, Uploads: b}
}
