package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/service"
)

var _ service.ImportHistory = (*SQLiteStorage)(nil)

const defaultImportLimit = 50

// RecordImport appends rec to the audit trail and fills in its ID.
func (s *SQLiteStorage) RecordImport(ctx context.Context, rec *service.ImportRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateImport(rec); err != nil {
		return err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO import_history
			(kind, table_name, identity, received, inserted, skipped, replaced, warnings, source_file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Kind, rec.Table, rec.Identity,
		rec.Received, rec.Inserted, rec.Skipped, rec.Replaced, rec.Warnings,
		rec.SourceFile, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read import id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListImports returns the most recent imports first. A non-positive limit
// selects the default page size.
func (s *SQLiteStorage) ListImports(ctx context.Context, limit int) ([]service.ImportRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultImportLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, table_name, identity, received, inserted, skipped, replaced, warnings, source_file, created_at
		FROM import_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []service.ImportRecord
	for rows.Next() {
		var rec service.ImportRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Kind,
			&rec.Table,
			&rec.Identity,
			&rec.Received,
			&rec.Inserted,
			&rec.Skipped,
			&rec.Replaced,
			&rec.Warnings,
			&rec.SourceFile,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
