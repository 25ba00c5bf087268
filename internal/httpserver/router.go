package httpserver

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	ordersvc "storefront/internal/service/order"
	paymentsvc "storefront/internal/service/payment"
	refundsvc "storefront/internal/service/refund"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type CartService interface {
	Get(ctx context.Context, userID string) (*cartsvc.View, error)
	AddItem(ctx context.Context, userID string, in cartsvc.AddItemInput) (*cartsvc.View, error)
	ChangeQuantity(ctx context.Context, userID string, in cartsvc.ChangeQuantityInput) (*cartsvc.View, error)
}

type CheckoutService interface {
	CreateOrder(ctx context.Context, in checkoutsvc.CreateOrderInput) (*domain.Order, error)
	OpenPaymentSession(ctx context.Context, in checkoutsvc.OpenSessionInput) (*checkoutsvc.SessionResult, error)
}

type OrderService interface {
	Get(ctx context.Context, userID, orderID string, admin bool) (*ordersvc.Details, error)
	Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, in ordersvc.UpdateStatusInput) (*domain.Order, error)
}

type PaymentService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*paymentsvc.Outcome, error)
	Sync(ctx context.Context, userID, orderID string, admin bool) (*paymentsvc.SyncResult, error)
}

type RefundService interface {
	Refund(ctx context.Context, in refundsvc.Input) (*refundsvc.Result, error)
}

// Deps are the services behind the routes. An empty AdminKeyHash disables the admin routes.
type Deps struct {
	CartSvc      CartService
	CheckoutSvc  CheckoutService
	OrderSvc     OrderService
	PaymentSvc   PaymentService
	RefundSvc    RefundService
	AdminKeyHash string
	CORSOrigins  []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.AdminKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(deps.AdminKeyHash)); err != nil {
			return nil, fmt.Errorf("admin key hash: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", userHeader, adminHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{deps: deps, logger: logger}
	router.POST("/webhooks/stripe", h.stripeWebhook)

	user := router.Group("/", userMiddleware(), pathIDs())
	user.GET("/cart", h.getCart)
	user.POST("/cart/items", h.addCartItem)
	user.PATCH("/cart/items/:itemId", h.changeCartItem)
	user.POST("/orders", h.createOrder)
	user.GET("/orders/:id", h.getOrder)
	user.DELETE("/orders/:id", h.cancelOrder)
	user.POST("/orders/:id/checkout", h.openCheckout)
	user.GET("/orders/:id/payment", h.syncPayment)

	admin := router.Group("/admin", adminMiddleware(deps.AdminKeyHash), pathIDs())
	admin.GET("/orders/:id", h.adminGetOrder)
	admin.PUT("/orders/:id/status", h.adminUpdateStatus)
	admin.POST("/orders/:id/refund", h.adminRefund)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
