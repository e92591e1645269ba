// Package cli implements the ledgerline operations command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/invoicing"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

var rootCmd = &cobra.Command{
	Use:           "ledgerline",
	Short:         "Operations CLI for the ledgerline invoicing service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env bundles the connections a command needs. Each command opens it in RunE
// and closes it before returning, so no state leaks between invocations.
type env struct {
	cfg       *app.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	invoices  *invoicing.Service
	customers *customers.Service
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}

	invoiceRepo := invoicing.NewRepository(pool)
	customerRepo := customers.NewRepository(pool)

	return &env{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		invoices:  invoicing.NewService(invoiceRepo, nil),
		customers: customers.NewService(customerRepo),
	}, nil
}

func (e *env) Close() {
	if e != nil && e.pool != nil {
		e.pool.Close()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
