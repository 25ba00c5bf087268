package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	ordersvc "storefront/internal/service/order"
	paymentsvc "storefront/internal/service/payment"
	refundsvc "storefront/internal/service/refund"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUserID    = "6f1c2a34-8b0e-4c8f-9d7e-2f3a4b5c6d7e"
	testAddressID = "0b7d4c1e-5a2f-4e3b-8c9d-1a2b3c4d5e6f"
	testOrderID   = "9e8d7c6b-5a4f-4e3d-9c2b-1a0f9e8d7c6b"
	testItemID    = "3c2b1a09-8f7e-4d6c-8b5a-493827160504"
)

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type stubCartService struct {
	view       *cartsvc.View
	err        error
	lastUserID string
	lastChange cartsvc.ChangeQuantityInput
}

func (s *stubCartService) Get(_ context.Context, userID string) (*cartsvc.View, error) {
	s.lastUserID = userID
	return s.view, s.err
}

func (s *stubCartService) AddItem(_ context.Context, userID string, _ cartsvc.AddItemInput) (*cartsvc.View, error) {
	s.lastUserID = userID
	return s.view, s.err
}

func (s *stubCartService) ChangeQuantity(_ context.Context, userID string, in cartsvc.ChangeQuantityInput) (*cartsvc.View, error) {
	s.lastUserID = userID
	s.lastChange = in
	return s.view, s.err
}

type stubCheckoutService struct {
	order      *domain.Order
	session    *checkoutsvc.SessionResult
	err        error
	lastCreate checkoutsvc.CreateOrderInput
}

func (s *stubCheckoutService) CreateOrder(_ context.Context, in checkoutsvc.CreateOrderInput) (*domain.Order, error) {
	s.lastCreate = in
	return s.order, s.err
}

func (s *stubCheckoutService) OpenPaymentSession(_ context.Context, _ checkoutsvc.OpenSessionInput) (*checkoutsvc.SessionResult, error) {
	return s.session, s.err
}

type stubOrderService struct {
	details   *ordersvc.Details
	order     *domain.Order
	err       error
	lastAdmin bool
}

func (s *stubOrderService) Get(_ context.Context, _, _ string, admin bool) (*ordersvc.Details, error) {
	s.lastAdmin = admin
	return s.details, s.err
}

func (s *stubOrderService) Cancel(_ context.Context, _, _ string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) UpdateStatus(_ context.Context, _ ordersvc.UpdateStatusInput) (*domain.Order, error) {
	return s.order, s.err
}

type stubPaymentService struct {
	outcome *paymentsvc.Outcome
	sync    *paymentsvc.SyncResult
	err     error
	lastSig string
	lastRaw string
}

func (s *stubPaymentService) HandleWebhook(_ context.Context, payload []byte, signature string) (*paymentsvc.Outcome, error) {
	s.lastSig = signature
	s.lastRaw = string(payload)
	return s.outcome, s.err
}

func (s *stubPaymentService) Sync(_ context.Context, _, _ string, _ bool) (*paymentsvc.SyncResult, error) {
	return s.sync, s.err
}

type stubRefundService struct {
	result *refundsvc.Result
	err    error
	last   refundsvc.Input
}

func (s *stubRefundService) Refund(_ context.Context, in refundsvc.Input) (*refundsvc.Result, error) {
	s.last = in
	return s.result, s.err
}

func newDeps() Deps {
	return Deps{
		CartSvc:     &stubCartService{view: &cartsvc.View{Lines: []cartsvc.Line{}}},
		CheckoutSvc: &stubCheckoutService{},
		OrderSvc:    &stubOrderService{},
		PaymentSvc:  &stubPaymentService{},
		RefundSvc:   &stubRefundService{},
	}
}

func newRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router, err := buildRouter(logDiscard(), nil, deps)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router
}

func do(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func asUser() map[string]string {
	return map[string]string{userHeader: testUserID}
}

func TestHealthAndReady(t *testing.T) {
	router := newRouter(t, newDeps())
	if rec := do(router, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without db, got %d", rec.Code)
	}
}

func TestUserRoutesRequireIdentity(t *testing.T) {
	router := newRouter(t, newDeps())
	if rec := do(router, http.MethodGet, "/cart", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/cart", "", map[string]string{userHeader: "not-a-uuid"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed id, got %d", rec.Code)
	}
}

func TestCreateOrderHandler_Created(t *testing.T) {
	deps := newDeps()
	checkout := &stubCheckoutService{order: &domain.Order{
		ID:     "order-1",
		Number: "ORD-2026-0001",
		Status: domain.OrderPending,
		Total:  decimal.RequireFromString("899.9"),
		Items:  []domain.OrderItem{{ProductID: "p1", ProductName: "Phone", Quantity: 1, UnitPrice: decimal.RequireFromString("899.9")}},
	}}
	deps.CheckoutSvc = checkout
	router := newRouter(t, deps)

	rec := do(router, http.MethodPost, "/orders", `{"addressId":"`+testAddressID+`"}`, asUser())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total":"899.90"`) || !strings.Contains(rec.Body.String(), `"status":"PENDING"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if checkout.lastCreate.UserID != testUserID || checkout.lastCreate.AddressID != testAddressID {
		t.Fatalf("unexpected input %+v", checkout.lastCreate)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		contains string
		hides    string
	}{
		{"insufficient stock", &domain.InsufficientStockError{ProductID: "p1", Name: "Phone", Available: 0, Requested: 1}, http.StatusConflict, `"available":0`, ""},
		{"empty cart", domain.ErrEmptyCart, http.StatusBadRequest, "cart is empty", ""},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found", ""},
		{"transition", &domain.TransitionError{From: domain.OrderDelivered, To: domain.OrderProcessing}, http.StatusConflict, "invalid_transition", ""},
		{"configuration", domain.ErrMissingIntent, http.StatusUnprocessableEntity, "configuration_error", ""},
		{"upstream", &domain.UpstreamError{Op: "refund", Err: errors.New("sk_live_secret rejected")}, http.StatusBadGateway, "payment provider request failed", "sk_live_secret"},
		{"internal", errors.New("connection reset by peer"), http.StatusInternalServerError, "internal server error", "connection reset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newDeps()
			deps.CheckoutSvc = &stubCheckoutService{err: tc.err}
			router := newRouter(t, deps)

			rec := do(router, http.MethodPost, "/orders", `{"addressId":"`+testAddressID+`"}`, asUser())
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.contains) {
				t.Fatalf("expected %q in body: %s", tc.contains, rec.Body.String())
			}
			if tc.hides != "" && strings.Contains(rec.Body.String(), tc.hides) {
				t.Fatalf("body leaks detail: %s", rec.Body.String())
			}
		})
	}
}

func TestChangeCartItemUsesPathID(t *testing.T) {
	deps := newDeps()
	carts := deps.CartSvc.(*stubCartService)
	router := newRouter(t, deps)

	rec := do(router, http.MethodPatch, "/cart/items/"+testItemID, `{"quantity":0}`, asUser())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if carts.lastChange.ItemID != testItemID || carts.lastChange.Quantity != 0 || carts.lastUserID != testUserID {
		t.Fatalf("unexpected change %+v user=%s", carts.lastChange, carts.lastUserID)
	}
}

func TestStripeWebhookHandler(t *testing.T) {
	deps := newDeps()
	payments := &stubPaymentService{outcome: &paymentsvc.Outcome{EventID: "evt_1"}}
	deps.PaymentSvc = payments
	router := newRouter(t, deps)

	if rec := do(router, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", rec.Code)
	}

	rec := do(router, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, map[string]string{signatureHeader: "t=1,v1=abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if payments.lastRaw != `{"id":"evt_1"}` || payments.lastSig != "t=1,v1=abc" {
		t.Fatalf("expected raw body and signature passed through, got %q %q", payments.lastRaw, payments.lastSig)
	}

	payments.lastRaw = ""
	big := `{"pad":"` + strings.Repeat("x", maxWebhookBody) + `"}`
	if rec := do(router, http.MethodPost, "/webhooks/stripe", big, map[string]string{signatureHeader: "t=1,v1=abc"}); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversize body, got %d", rec.Code)
	}
	if payments.lastRaw != "" {
		t.Fatalf("oversize body must not reach the reconciler")
	}
	exact := strings.Repeat(" ", maxWebhookBody-2) + "{}"
	if rec := do(router, http.MethodPost, "/webhooks/stripe", exact, map[string]string{signatureHeader: "t=1,v1=abc"}); rec.Code != http.StatusOK || len(payments.lastRaw) != maxWebhookBody {
		t.Fatalf("expected a body at the limit to pass whole, got %d len=%d", rec.Code, len(payments.lastRaw))
	}

	payments.err = domain.ErrAuthentication
	if rec := do(router, http.MethodPost, "/webhooks/stripe", `{}`, map[string]string{signatureHeader: "forged"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rec.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	deps := newDeps()
	deps.AdminKeyHash = string(hash)
	refunds := &stubRefundService{result: &refundsvc.Result{RefundID: "re_1", Amount: decimal.RequireFromString("100.5"), Status: "succeeded"}}
	deps.RefundSvc = refunds
	deps.OrderSvc = &stubOrderService{err: &domain.TransitionError{From: domain.OrderDelivered, To: domain.OrderProcessing}}
	router := newRouter(t, deps)
	admin := map[string]string{adminHeader: "admin-secret"}

	if rec := do(router, http.MethodPost, "/admin/orders/"+testOrderID+"/refund", "", map[string]string{adminHeader: "guess"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}

	rec := do(router, http.MethodPost, "/admin/orders/"+testOrderID+"/refund", `{"amount":"100.50","reason":"duplicate"}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"amount":"100.50"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if refunds.last.OrderID != testOrderID || refunds.last.Amount == nil || refunds.last.Amount.StringFixed(2) != "100.50" || refunds.last.Reason != "duplicate" {
		t.Fatalf("unexpected refund input %+v", refunds.last)
	}

	if rec := do(router, http.MethodPost, "/admin/orders/"+testOrderID+"/refund", "", admin); rec.Code != http.StatusOK || refunds.last.Amount != nil {
		t.Fatalf("expected full refund without body, got %d amount=%v", rec.Code, refunds.last.Amount)
	}

	if rec := do(router, http.MethodPut, "/admin/orders/"+testOrderID+"/status", `{"status":"PROCESSING"}`, admin); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for invalid transition, got %d", rec.Code)
	}
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	router := newRouter(t, newDeps())
	if rec := do(router, http.MethodGet, "/admin/orders/"+testOrderID, "", map[string]string{adminHeader: "anything"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBuildRouterRejectsMalformedHash(t *testing.T) {
	if _, err := buildRouter(logDiscard(), nil, Deps{AdminKeyHash: "plaintext"}); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func TestMalformedIDs(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	deps := newDeps()
	deps.AdminKeyHash = string(hash)
	checkout := deps.CheckoutSvc.(*stubCheckoutService)
	refunds := deps.RefundSvc.(*stubRefundService)
	router := newRouter(t, deps)

	notFound := []struct{ method, path string }{
		{http.MethodGet, "/orders/abc"},
		{http.MethodDelete, "/orders/abc"},
		{http.MethodGet, "/orders/abc/payment"},
		{http.MethodPatch, "/cart/items/abc"},
	}
	for _, tc := range notFound {
		rec := do(router, tc.method, tc.path, `{"quantity":1}`, asUser())
		if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not_found") {
			t.Fatalf("%s %s: expected 404, got %d body=%s", tc.method, tc.path, rec.Code, rec.Body.String())
		}
	}
	rec := do(router, http.MethodPost, "/admin/orders/abc/refund", "", map[string]string{adminHeader: "admin-secret"})
	if rec.Code != http.StatusNotFound || refunds.last.OrderID != "" {
		t.Fatalf("expected 404 before refund, got %d input=%+v", rec.Code, refunds.last)
	}

	rec = do(router, http.MethodPost, "/orders", `{"addressId":"abc"}`, asUser())
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "addressId") {
		t.Fatalf("expected 400 naming addressId, got %d body=%s", rec.Code, rec.Body.String())
	}
	if checkout.lastCreate.AddressID != "" {
		t.Fatalf("checkout must not be called, got %+v", checkout.lastCreate)
	}
	rec = do(router, http.MethodPost, "/cart/items", `{"productId":"abc","quantity":1}`, asUser())
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "productId") {
		t.Fatalf("expected 400 naming productId, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestNewServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if _, err := New(":0", logDiscard(), nil, Deps{AdminKeyHash: "plaintext"}); err == nil {
		t.Fatalf("expected malformed hash to fail")
	}
	srv, err := New(":0", logDiscard(), nil, newDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.httpServer.WriteTimeout != writeTimeout || srv.httpServer.ReadHeaderTimeout != readHeaderTimeout {
		t.Fatalf("unexpected timeouts %+v", srv.httpServer)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown before serve: %v", err)
	}
}
