package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/folio/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to MCP clients",
		Long: `Start an MCP server that exposes the index through the search and
stats tools. Stdout carries the protocol; logs go to ~/.folio/logs/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	return cmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	led := openLedger(cfg)
	if led != nil {
		defer func() { _ = led.Close() }()
	}

	srv, err := mcp.NewServer(mcp.Options{
		IndexPath:    cfg.Index.Path,
		Columns:      cfg.Search.Columns,
		DefaultLimit: cfg.Search.Limit,
		Ledger:       led,
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}

	err = srv.Serve(ctx, transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
