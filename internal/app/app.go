// Package app wires configuration, storage, the payment gateway and the
// services shared by the API server and the ops CLI.
package app

import (
	"context"
	"fmt"
	"log"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/dedup"
	"storefront/internal/events"
	"storefront/internal/gateway/stripegw"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	"storefront/internal/service/inventory"
	ordersvc "storefront/internal/service/order"
	paymentsvc "storefront/internal/service/payment"
	refundsvc "storefront/internal/service/refund"
	"storefront/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const eventBuffer = 1024

type App struct {
	Config config.Config
	Pool   *pgxpool.Pool
	Store  store.Store
	Ledger *inventory.Ledger

	Carts    *cartsvc.Service
	Checkout *checkoutsvc.Service
	Orders   *ordersvc.Service
	Payments *paymentsvc.Reconciler
	Refunds  *refundsvc.Service

	kafka  *events.KafkaPublisher
	redis  *redis.Client
	logger *log.Logger
}

// New connects to the datastore (and Redis when configured) and builds every service.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	a := &App{Config: cfg, Pool: pool, logger: logger}

	var seen dedup.Store = dedup.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := dedup.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = rdb
		seen = dedup.NewRedis(rdb, dedup.DefaultTTL)
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName, eventBuffer, logger)
		pub = a.kafka
	}

	gw := stripegw.New(stripegw.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Timeout:       cfg.GatewayTimeout,
	}, logger)

	a.Store = store.NewPostgres(pool, logger)
	a.Ledger = inventory.New(logger)
	lifecycle := ordersvc.NewLifecycle(a.Ledger, logger)

	a.Carts = cartsvc.New(a.Store)
	a.Checkout = checkoutsvc.New(a.Store, a.Ledger, lifecycle, gw, pub, checkoutsvc.Config{
		Currency:     cfg.Currency,
		ShippingCost: cfg.ShippingCost,
	}, logger)
	a.Orders = ordersvc.New(a.Store, lifecycle, pub, logger)
	a.Payments = paymentsvc.New(a.Store, lifecycle, gw, gw, seen, pub, logger)
	a.Refunds = refundsvc.New(a.Store, lifecycle, gw, pub, logger)
	return a, nil
}

// RunPublisher drains lifecycle events until ctx is done. It returns at once
// when publishing is disabled.
func (a *App) RunPublisher(ctx context.Context) error {
	if a.kafka == nil {
		return nil
	}
	return a.kafka.Run(ctx)
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Printf("close redis: %v", err)
		}
	}
	a.Pool.Close()
}
