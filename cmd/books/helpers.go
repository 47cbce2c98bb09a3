package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/session"
	"github.com/Veraticus/the-books-must-balance/internal/sheets"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
)

// initStorage opens the local database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.AppConfig) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initSheets connects to the shared spreadsheet.
func initSheets(ctx context.Context) (*sheets.Store, error) {
	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Google Sheets config: %w", err)
	}

	store, err := sheets.NewStore(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}
	return store, nil
}

func newRegistry(store *sheets.Store, cfg *config.AppConfig) (*session.Registry, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return session.NewRegistry(store,
		session.WithTable(cfg.SessionTable),
		session.WithLocation(loc),
		session.WithIdleTimeout(cfg.IdleTimeout),
		session.WithLogger(slog.Default()),
	), nil
}

func newCatalog(cfg *config.AppConfig) (*reconcile.Catalog, error) {
	catalog, err := reconcile.NewCatalog(cfg.ReportTables)
	if err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return catalog, nil
}
