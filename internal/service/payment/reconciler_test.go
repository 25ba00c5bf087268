package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/service/inventory"
	orderservice "storefront/internal/service/order"
	"storefront/internal/service/refund"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

type stubVerifier struct {
	events map[string]*gateway.Event
}

func (s *stubVerifier) VerifyEvent(payload []byte, signature string) (*gateway.Event, error) {
	ev, ok := s.events[signature]
	if !ok {
		return nil, fmt.Errorf("%w: no signatures found matching the expected signature", domain.ErrAuthentication)
	}
	return ev, nil
}

type stubGateway struct {
	session *gateway.Session
	refund  *gateway.Refund
	err     error
}

func (s *stubGateway) OpenCheckoutSession(context.Context, gateway.SessionRequest) (*gateway.Session, error) {
	return nil, errors.New("not implemented")
}

func (s *stubGateway) RetrieveSession(context.Context, string) (*gateway.Session, error) {
	return s.session, s.err
}

func (s *stubGateway) Refund(context.Context, gateway.RefundRequest) (*gateway.Refund, error) {
	if s.refund == nil {
		return nil, errors.New("not implemented")
	}
	return s.refund, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []events.StatusChangedPayload
}

func (r *recordingPublisher) Publish(_ context.Context, _ events.Type, _ string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := payload.(events.StatusChangedPayload); ok {
		r.statuses = append(r.statuses, p)
	}
}

type memorySeen struct {
	ids map[string]bool
}

func (m *memorySeen) Seen(_ context.Context, id string) (bool, error) { return m.ids[id], nil }
func (m *memorySeen) Mark(_ context.Context, id string) error {
	m.ids[id] = true
	return nil
}

type fixture struct {
	mem       *store.Memory
	rec       *Reconciler
	verifier  *stubVerifier
	gw        *stubGateway
	pub       *recordingPublisher
	seen      *memorySeen
	userID    string
	productID string
	orderID   string
}

// newFixture builds an order for two units of a product with stock 5, with a
// checkout session open and the order PROCESSING.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	user := mem.PutUser(domain.User{Email: "buyer@example.com"})
	product := mem.PutProduct(domain.Product{Name: "Phone", Price: decimal.RequireFromString("899.90"), Stock: 5, Active: true})
	ledger := inventory.New(nil)

	var orderID string
	err := mem.WithinTx(ctx, func(tx store.Tx) error {
		o := &domain.Order{
			Number: "ORD-2026-0001",
			UserID: user.ID,
			Status: domain.OrderPending,
			Total:  decimal.RequireFromString("1799.80"),
			Items:  []domain.OrderItem{{ProductID: product.ID, ProductName: "Phone", Quantity: 2, UnitPrice: product.Price}},
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if err := ledger.ReserveAll(ctx, tx.Products(), inventory.OrderLines(o.Items)); err != nil {
			return err
		}
		if err := tx.Payments().Save(ctx, &domain.Payment{
			OrderID:   o.ID,
			Amount:    o.Total,
			Method:    domain.PaymentMethodCard,
			Status:    domain.PaymentPending,
			SessionID: "cs_1",
		}); err != nil {
			return err
		}
		if _, err := tx.Orders().CompareAndSetStatus(ctx, o.ID, domain.OrderPending, domain.OrderProcessing); err != nil {
			return err
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	f := &fixture{
		mem:       mem,
		verifier:  &stubVerifier{events: map[string]*gateway.Event{}},
		gw:        &stubGateway{},
		pub:       &recordingPublisher{},
		seen:      &memorySeen{ids: map[string]bool{}},
		userID:    user.ID,
		productID: product.ID,
		orderID:   orderID,
	}
	f.rec = New(mem, orderservice.NewLifecycle(ledger, nil), f.verifier, f.gw, f.seen, f.pub, nil)
	return f
}

func (f *fixture) sign(sig string, ev *gateway.Event) {
	f.verifier.events[sig] = ev
}

func (f *fixture) state(t *testing.T) (*domain.Order, *domain.Payment, int) {
	t.Helper()
	var (
		o *domain.Order
		p *domain.Payment
	)
	err := f.mem.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		if o, err = tx.Orders().GetByID(context.Background(), f.orderID); err != nil {
			return err
		}
		p, err = tx.Payments().GetByOrderID(context.Background(), f.orderID)
		return err
	})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	prod, _ := f.mem.Product(f.productID)
	return o, p, prod.Stock
}

func TestCompletedMarksPaidOnceAcrossReplays(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-1", &gateway.Event{ID: "evt_1", Kind: gateway.CheckoutCompleted, SessionID: "cs_1", PaymentIntentID: "pi_1", CustomerID: "cus_1"})

	out, err := f.rec.HandleWebhook(context.Background(), []byte(`{}`), "sig-1")
	if err != nil || out.Duplicate {
		t.Fatalf("first delivery: out=%+v err=%v", out, err)
	}
	o, p, stock := f.state(t)
	if o.Status != domain.OrderPaid || p.Status != domain.PaymentPaid {
		t.Fatalf("expected PAID/PAID, got %s/%s", o.Status, p.Status)
	}
	if p.IntentID != "pi_1" || p.Stripe.CustomerID != "cus_1" {
		t.Fatalf("expected gateway ids recorded, got %+v", p)
	}
	if stock != 3 {
		t.Fatalf("expected stock 3, got %d", stock)
	}

	// A replay is acknowledged by the fast path.
	out, err = f.rec.HandleWebhook(context.Background(), []byte(`{}`), "sig-1")
	if err != nil || !out.Duplicate {
		t.Fatalf("expected duplicate, got out=%+v err=%v", out, err)
	}

	// Without the fast path the processed-events table still dedups.
	f.seen.ids = map[string]bool{}
	out, err = f.rec.HandleWebhook(context.Background(), []byte(`{}`), "sig-1")
	if err != nil || !out.Duplicate {
		t.Fatalf("expected duplicate from store, got out=%+v err=%v", out, err)
	}
	if len(f.pub.statuses) != 1 || f.pub.statuses[0].To != string(domain.OrderPaid) {
		t.Fatalf("expected a single status event, got %+v", f.pub.statuses)
	}
}

func TestExpiredReturnsOrderToPendingKeepingStock(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-exp", &gateway.Event{ID: "evt_exp", Kind: gateway.CheckoutExpired, SessionID: "cs_1"})

	if _, err := f.rec.HandleWebhook(context.Background(), nil, "sig-exp"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	o, p, stock := f.state(t)
	if o.Status != domain.OrderPending || p.Status != domain.PaymentFailed {
		t.Fatalf("expected PENDING/FAILED, got %s/%s", o.Status, p.Status)
	}
	if stock != 3 {
		t.Fatalf("expected stock to stay reserved at 3, got %d", stock)
	}
}

func TestFailureAfterPaymentIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-ok", &gateway.Event{ID: "evt_ok", Kind: gateway.CheckoutCompleted, SessionID: "cs_1", PaymentIntentID: "pi_1"})
	f.sign("sig-fail", &gateway.Event{ID: "evt_fail", Kind: gateway.PaymentIntentFailed, PaymentIntentID: "pi_1"})

	for _, sig := range []string{"sig-ok", "sig-fail"} {
		if _, err := f.rec.HandleWebhook(context.Background(), nil, sig); err != nil {
			t.Fatalf("%s: %v", sig, err)
		}
	}
	o, p, _ := f.state(t)
	if o.Status != domain.OrderPaid || p.Status != domain.PaymentPaid {
		t.Fatalf("expected PAID/PAID to survive a late failure, got %s/%s", o.Status, p.Status)
	}
}

func TestChargeRefundedCancelsAndRestocks(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-ok", &gateway.Event{ID: "evt_ok", Kind: gateway.CheckoutCompleted, SessionID: "cs_1", PaymentIntentID: "pi_1"})
	f.sign("sig-ref", &gateway.Event{ID: "evt_ref", Kind: gateway.ChargeRefunded, PaymentIntentID: "pi_1"})

	for _, sig := range []string{"sig-ok", "sig-ref"} {
		if _, err := f.rec.HandleWebhook(context.Background(), nil, sig); err != nil {
			t.Fatalf("%s: %v", sig, err)
		}
	}
	o, p, stock := f.state(t)
	if o.Status != domain.OrderCancelled || p.Status != domain.PaymentRefunded {
		t.Fatalf("expected CANCELLED/REFUNDED, got %s/%s", o.Status, p.Status)
	}
	if stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", stock)
	}
}

func TestAdminRefundThenChargeRefundedRestocksOnce(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-ok", &gateway.Event{ID: "evt_ok", Kind: gateway.CheckoutCompleted, SessionID: "cs_1", PaymentIntentID: "pi_1"})
	if _, err := f.rec.HandleWebhook(context.Background(), nil, "sig-ok"); err != nil {
		t.Fatalf("completed: %v", err)
	}

	f.gw.refund = &gateway.Refund{ID: "re_1", Amount: 179980, Status: "succeeded"}
	refunds := refund.New(f.mem, orderservice.NewLifecycle(inventory.New(nil), nil), f.gw, f.pub, nil)
	if _, err := refunds.Refund(context.Background(), refund.Input{OrderID: f.orderID}); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if _, _, stock := f.state(t); stock != 5 {
		t.Fatalf("expected stock 5 after refund, got %d", stock)
	}

	// Stripe reports the same refund, and may do so under more than one event id.
	f.sign("sig-ref-1", &gateway.Event{ID: "evt_ref_1", Kind: gateway.ChargeRefunded, PaymentIntentID: "pi_1"})
	f.sign("sig-ref-2", &gateway.Event{ID: "evt_ref_2", Kind: gateway.ChargeRefunded, PaymentIntentID: "pi_1"})
	for _, sig := range []string{"sig-ref-1", "sig-ref-2"} {
		out, err := f.rec.HandleWebhook(context.Background(), nil, sig)
		if err != nil || out.Duplicate {
			t.Fatalf("%s: out=%+v err=%v", sig, out, err)
		}
	}

	o, p, stock := f.state(t)
	if o.Status != domain.OrderCancelled || p.Status != domain.PaymentRefunded {
		t.Fatalf("expected CANCELLED/REFUNDED, got %s/%s", o.Status, p.Status)
	}
	if stock != 5 {
		t.Fatalf("expected stock restored once to 5, got %d", stock)
	}
	if p.Stripe.RefundID != "re_1" {
		t.Fatalf("expected refund id kept, got %+v", p.Stripe)
	}
}

func TestBadSignatureHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-ok", &gateway.Event{ID: "evt_1", Kind: gateway.CheckoutCompleted, SessionID: "cs_1"})

	_, err := f.rec.HandleWebhook(context.Background(), []byte(`{}`), "forged")
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	o, p, _ := f.state(t)
	if o.Status != domain.OrderProcessing || p.Status != domain.PaymentPending {
		t.Fatalf("expected untouched state, got %s/%s", o.Status, p.Status)
	}
	if len(f.seen.ids) != 0 || len(f.pub.statuses) != 0 {
		t.Fatalf("expected no dedup marks or events")
	}
}

func TestUnknownKindsAndSessionsAreAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.sign("sig-other", &gateway.Event{ID: "evt_other", Kind: "customer.created"})
	f.sign("sig-stray", &gateway.Event{ID: "evt_stray", Kind: gateway.CheckoutCompleted, SessionID: "cs_unknown"})

	out, err := f.rec.HandleWebhook(context.Background(), nil, "sig-other")
	if err != nil || !out.Ignored {
		t.Fatalf("expected ignored, got out=%+v err=%v", out, err)
	}
	if _, err := f.rec.HandleWebhook(context.Background(), nil, "sig-stray"); err != nil {
		t.Fatalf("expected stray session to be acknowledged, got %v", err)
	}
	o, _, _ := f.state(t)
	if o.Status != domain.OrderProcessing {
		t.Fatalf("expected order untouched, got %s", o.Status)
	}
}

func TestSyncAppliesPaidSession(t *testing.T) {
	f := newFixture(t)
	f.gw.session = &gateway.Session{ID: "cs_1", Status: gateway.SessionComplete, PaymentStatus: gateway.SessionPaid, PaymentIntentID: "pi_9"}

	res, err := f.rec.Sync(context.Background(), f.userID, f.orderID, false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.PaymentStatus != domain.PaymentPaid || res.OrderStatus != domain.OrderPaid || !res.SessionPaid {
		t.Fatalf("unexpected result %+v", res)
	}
	_, p, _ := f.state(t)
	if p.IntentID != "pi_9" {
		t.Fatalf("expected intent recorded, got %q", p.IntentID)
	}
}

func TestSyncErrors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.rec.Sync(context.Background(), "someone-else", f.orderID, false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign order, got %v", err)
	}

	f.gw.err = errors.New("api down")
	if _, err := f.rec.Sync(context.Background(), f.userID, f.orderID, false); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	_ = f.mem.WithinTx(context.Background(), func(tx store.Tx) error {
		p, _ := tx.Payments().GetByOrderID(context.Background(), f.orderID)
		p.SessionID = ""
		return tx.Payments().Save(context.Background(), p)
	})
	if _, err := f.rec.Sync(context.Background(), f.userID, f.orderID, true); !errors.Is(err, domain.ErrMissingSession) {
		t.Fatalf("expected missing session, got %v", err)
	}
}
