package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/app/bootstrap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	var configPath string
	rootCmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Operator tooling for the invoice reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/default.yaml", "path to the service config file")

	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(markOverdueCmd(&configPath))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema to the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap.NewLogger()
			if err := bootstrap.Migrate(cmd.Context(), *configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func markOverdueCmd(configPath *string) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Move SENT invoices due before --as-of to OVERDUE",
		Long: `Scans SENT invoices whose due date is before the cut-off and moves each
one to OVERDUE. Invoices paid in the meantime are skipped.

Examples:
  invoicectl mark-overdue
  invoicectl mark-overdue --as-of 2026-01-31T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cutoff := time.Now().UTC()
			if asOf != "" {
				parsed, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				cutoff = parsed.UTC()
			}

			runtime, err := bootstrap.NewRuntime(cmd.Context(), *configPath)
			if err != nil {
				return fmt.Errorf("bootstrap runtime: %w", err)
			}
			defer runtime.Close(cmd.Context())

			result, err := runtime.Service().MarkOverdueInvoices(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d marked=%d skipped=%d\n", result.Scanned, result.Marked, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 cut-off; defaults to now")
	return cmd
}
