package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-books-must-balance/internal/auth"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/ingest"
	"github.com/Veraticus/the-books-must-balance/internal/metrics"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/web"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the login, heartbeat and report upload API.

Operators log in with the credentials kept in the local database. Each login
supersedes the operator's previous session. Prometheus metrics are served at
/metrics.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.address)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ServerAddress = addr
	}

	db, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store, err := initSheets(ctx)
	if err != nil {
		return err
	}

	registry, err := newRegistry(store, cfg)
	if err != nil {
		return err
	}
	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}

	logger := slog.Default()
	directory := auth.NewDirectory(db, auth.NewHasher(0), logger)

	server := web.NewServer(web.Deps{
		Auth:      auth.NewService(directory, registry, logger),
		Sessions:  registry,
		Catalog:   catalog,
		Loader:    ingest.NewLoader(ingest.WithLogger(logger)),
		Publisher: reconcile.NewMerger(store, logger),
		History:   db,
		Metrics:   metrics.New(),
	}, web.Config{
		Address:        cfg.ServerAddress,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		SecureCookies:  cfg.SecureCookies,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		slog.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
