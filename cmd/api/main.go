package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/httpserver"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("init app: %v", err)
	}
	defer a.Close()

	if cfg.StripeWebhookSecret == "" {
		logger.Printf("STRIPE_WEBHOOK_SECRET is empty; every webhook will be rejected")
	}
	if cfg.AdminAPIKeyHash == "" {
		logger.Printf("ADMIN_API_KEY_HASH is empty; admin routes are disabled")
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, a.Pool, httpserver.Deps{
		CartSvc:      a.Carts,
		CheckoutSvc:  a.Checkout,
		OrderSvc:     a.Orders,
		PaymentSvc:   a.Payments,
		RefundSvc:    a.Refunds,
		AdminKeyHash: cfg.AdminAPIKeyHash,
		CORSOrigins:  cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	logger.Printf("starting http server on %s", cfg.HTTPAddr)
	if err := a.Serve(ctx, srv, cfg.ShutdownTimeout); err != nil {
		logger.Printf("server stopped with error: %v", err)
		return
	}
	logger.Printf("server stopped")
}
