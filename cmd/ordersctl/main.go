package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"storefront/internal/app"
	"storefront/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Operate on storefront orders, payments and stock",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(syncPaymentCmd())
	rootCmd.AddCommand(restockCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the services, runs fn and flushes pending lifecycle events before returning.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stderr, "[ordersctl] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pubCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunPublisher(pubCtx) }()

	runErr := fn(ctx, a)
	stop()
	if err := <-done; err != nil {
		logger.Printf("flush events: %v", err)
	}
	return runErr
}
