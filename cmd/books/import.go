package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/ingest"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/sheets"
)

func importCmd() *cobra.Command {
	kinds := make([]string, 0, len(model.AllReportKinds()))
	for _, k := range model.AllReportKinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Publish report files to the spreadsheet",
		Long: `Read one or more exported reports (.xlsx, .csv, .ofx) and publish them to the
table configured for the report kind.

Key-based reports skip rows that are already stored. Date-range reports replace
every stored row on the dates present in the file.

Report kinds: ` + strings.Join(kinds, ", "),
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringP("kind", "k", "", "report kind (required)")
	cmd.Flags().String("sheet", "", "worksheet to read from .xlsx files (default: first)")
	cmd.Flags().Bool("dry-run", false, "show what would change without writing to the spreadsheet")
	cmd.Flags().String("as", "", "identity recorded in the import history (default: $USER)")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kindFlag, _ := cmd.Flags().GetString("kind")
	sheet, _ := cmd.Flags().GetString("sheet")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	identity, _ := cmd.Flags().GetString("as")
	if identity == "" {
		identity = os.Getenv("USER")
	}

	kind, err := model.ParseReportKind(kindFlag)
	if err != nil {
		return err
	}

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	schema, ok := catalog.Schema(kind)
	if !ok {
		return fmt.Errorf("report kind %s is not configured", kind)
	}

	live, err := initSheets(ctx)
	if err != nil {
		return err
	}

	job := &importJob{
		loader:   ingest.NewLoader(ingest.WithSheet(sheet), ingest.WithLogger(slog.Default())),
		schema:   schema,
		identity: identity,
		dryRun:   dryRun,
		out:      cmd.OutOrStdout(),
	}

	if dryRun {
		preview, err := previewStore(ctx, live, schema.Table())
		if err != nil {
			return err
		}
		job.merger = reconcile.NewMerger(preview, slog.Default())
	} else {
		db, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		job.merger = reconcile.NewMerger(live, slog.Default())
		job.history = db
	}

	return job.run(ctx, args)
}

// previewStore copies the live table into memory so a dry run merges
// against real data without writing it back.
func previewStore(ctx context.Context, live service.TabularStore, table string) (*sheets.MemoryStore, error) {
	preview := sheets.NewMemoryStore()

	current, err := live.ReadAll(ctx, table)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return preview, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}

	preview.Seed(table, current.Header, current.Rows...)
	return preview, nil
}

type importJob struct {
	loader   *ingest.Loader
	merger   *reconcile.Merger
	schema   *reconcile.Schema
	history  service.ImportHistory
	out      io.Writer
	identity string
	dryRun   bool
}

// run publishes files in order. A file that fails does not stop the
// others; the returned error counts the failures.
func (j *importJob) run(ctx context.Context, files []string) error {
	failed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		summary, err := j.publish(ctx, path)
		if err != nil {
			failed++
			fmt.Fprintln(j.out, cli.FormatError(describeError(path, err)))
			continue
		}

		fmt.Fprintln(j.out, cli.RenderImportSummary(filepath.Base(path), summary, j.dryRun))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to import", failed, len(files))
	}
	return nil
}

func (j *importJob) publish(ctx context.Context, path string) (reconcile.Summary, error) {
	f, err := os.Open(path) //nolint:gosec // operator supplied path
	if err != nil {
		return reconcile.Summary{}, err
	}
	defer func() { _ = f.Close() }()

	batch, err := j.loader.Load(ctx, j.schema, filepath.Base(path), f)
	if err != nil {
		return reconcile.Summary{}, err
	}
	for _, col := range batch.Mapping.Missing {
		slog.Debug("Column not found in file", "file", batch.Source, "column", col)
	}

	summary, err := j.merger.Publish(ctx, j.schema, batch.Rows)
	if err != nil {
		return reconcile.Summary{}, err
	}

	if j.history != nil {
		rec := &service.ImportRecord{
			Kind:       string(j.schema.Kind()),
			Table:      summary.Table,
			Identity:   j.identity,
			SourceFile: batch.Source,
			Received:   summary.Received,
			Inserted:   summary.Inserted,
			Skipped:    summary.Skipped,
			Replaced:   summary.Replaced,
			Warnings:   len(summary.Warnings),
		}
		if err := j.history.RecordImport(ctx, rec); err != nil {
			slog.Warn("Failed to record import", "file", batch.Source, "error", err)
		}
	}

	return summary, nil
}

// describeError prefers the operator-facing message of a UserError.
func describeError(path string, err error) string {
	var mismatch *common.SchemaMismatchError
	if errors.As(err, &mismatch) {
		return fmt.Sprintf("%s: table %s is missing columns: %s",
			filepath.Base(path), mismatch.Table, strings.Join(mismatch.Missing, ", "))
	}

	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return fmt.Sprintf("%s: %s", filepath.Base(path), userErr.UserMessage)
	}
	return fmt.Sprintf("%s: %v", filepath.Base(path), err)
}
