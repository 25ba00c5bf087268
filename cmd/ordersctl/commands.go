package main

import (
	"context"
	"fmt"
	"os"

	"storefront/internal/app"
	"storefront/internal/importer"
	ordersvc "storefront/internal/service/order"
	refundsvc "storefront/internal/service/refund"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <orderId> <STATUS>",
		Short: "Override an order status along the state machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				in := ordersvc.UpdateStatusInput{OrderID: args[0], Status: args[1]}
				if cmd.Flags().Changed("notes") {
					notes, _ := cmd.Flags().GetString("notes")
					in.Notes = &notes
				}
				o, err := a.Orders.UpdateStatus(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s (%s) is now %s\n", o.ID, o.Number, o.Status)
				return nil
			})
		},
	}
	cmd.Flags().String("notes", "", "Replace the order notes")
	return cmd
}

func refundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund <orderId>",
		Short: "Refund a paid order and cancel it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := refundsvc.Input{OrderID: args[0]}
			in.Reason, _ = cmd.Flags().GetString("reason")
			if raw, _ := cmd.Flags().GetString("amount"); raw != "" {
				amount, err := decimal.NewFromString(raw)
				if err != nil {
					return fmt.Errorf("invalid --amount %q: %w", raw, err)
				}
				in.Amount = &amount
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Refunds.Refund(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refund %s: %s (%s)\n", res.RefundID, res.Amount.StringFixed(2), res.Status)
				return nil
			})
		},
	}
	cmd.Flags().String("amount", "", "Partial amount in major units, e.g. 100.50 (default: full payment)")
	cmd.Flags().String("reason", "", "duplicate, fraudulent or requested_by_customer")
	return cmd
}

func syncPaymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-payment <orderId>",
		Short: "Reconcile an order with its gateway checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Payments.Sync(ctx, userID, args[0], userID == "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s: order=%s payment=%s session=%s\n", res.OrderID, res.OrderStatus, res.PaymentStatus, res.SessionStatus)
				return nil
			})
		},
	}
	cmd.Flags().String("user", "", "Act as this user; empty skips the ownership check")
	return cmd
}

func restockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restock",
		Short: "Add stock from a CSV file with sku,quantity columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := importer.NewRestockImporter(f, a.Store, a.Ledger).Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restocked %d rows from %s\n", n, path)
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "Path to the restock CSV")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
