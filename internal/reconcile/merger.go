package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Summary reports what a Publish call did.
type Summary struct {
	Table    string              `json:"table"`
	Strategy model.MergeStrategy `json:"strategy"`
	Dates    []string            `json:"dates,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Received int                 `json:"received"`
	Inserted int                 `json:"inserted"`
	Skipped  int                 `json:"skipped"`
	Replaced int                 `json:"replaced"`
	Kept     int                 `json:"kept"`
}

// Merger writes report batches back to a tabular store.
type Merger struct {
	store  service.TabularStore
	logger *slog.Logger
	locks  *common.KeyedMutex
}

// NewMerger creates a Merger over store.
func NewMerger(store service.TabularStore, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		store:  store,
		logger: logger,
		locks:  common.NewKeyedMutex(),
	}
}

// Publish reconciles rows, laid out in schema column order, with the
// destination table and writes the result. Nothing is written when the
// stored header lacks a schema column.
func (m *Merger) Publish(ctx context.Context, schema *Schema, rows []model.Row) (Summary, error) {
	summary := Summary{
		Table:    schema.Table(),
		Strategy: schema.Strategy(),
		Received: len(rows),
	}

	incoming, warnings, err := m.prepare(schema, rows)
	if err != nil {
		return summary, err
	}
	summary.Warnings = warnings

	unlock := m.locks.Lock(schema.Table())
	defer unlock()

	stored, created, err := m.load(ctx, schema)
	if err != nil {
		return summary, err
	}

	if missing := missingColumns(schema.Columns(), stored.Header); len(missing) > 0 {
		return summary, &common.SchemaMismatchError{Table: schema.Table(), Missing: missing}
	}

	header := stored.Header
	existing := make([]model.Row, len(stored.Rows))
	for i, r := range stored.Rows {
		existing[i] = stringRow(r, len(header))
	}
	aligned := alignRows(schema, incoming, header)

	switch schema.Strategy() {
	case model.StrategyKey:
		keyIdx := indexOf(header, schema.Roles().Key)
		merged := MergeByKey(existing, aligned, keyIdx)
		summary.Inserted = len(merged.Inserted)
		summary.Skipped = len(merged.Skipped)
		summary.Kept = len(merged.Kept)

		if len(merged.Inserted) > 0 {
			if created {
				err = m.store.ClearAndWrite(ctx, schema.Table(), header, serializeRows(merged.Inserted))
			} else {
				err = m.store.Append(ctx, schema.Table(), serializeRows(merged.Inserted))
			}
			if err != nil {
				return summary, fmt.Errorf("failed to write %s: %w", schema.Table(), err)
			}
		}

	case model.StrategyDateRange:
		dateIdx := indexOf(header, schema.Roles().Date)
		merged := MergeByDateRange(existing, aligned, dateIdx)
		summary.Inserted = len(aligned)
		summary.Replaced = merged.Replaced
		summary.Kept = merged.Kept
		summary.Dates = merged.Dates

		if len(aligned) > 0 {
			if err := m.store.ClearAndWrite(ctx, schema.Table(), header, serializeRows(merged.Rows)); err != nil {
				return summary, fmt.Errorf("failed to rewrite %s: %w", schema.Table(), err)
			}
		}

	default:
		return summary, fmt.Errorf("%w: unknown strategy %q", common.ErrInvalidConfig, schema.Strategy())
	}

	m.logger.InfoContext(ctx, "Published report",
		"kind", schema.Kind(),
		"table", summary.Table,
		"strategy", summary.Strategy,
		"received", summary.Received,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"replaced", summary.Replaced,
		"warnings", len(summary.Warnings))

	return summary, nil
}

// prepare checks row widths, copies the rows and stamps duplicate keys.
func (m *Merger) prepare(schema *Schema, rows []model.Row) ([]model.Row, []string, error) {
	var warnings []string
	keyIdx := schema.Index(schema.Roles().Key)
	out := make([]model.Row, len(rows))

	for i, row := range rows {
		if len(row) != schema.Width() {
			return nil, nil, fmt.Errorf("row %d has %d cells, %s expects %d", i+1, len(row), schema.Kind(), schema.Width())
		}

		cp := row.Clone()
		rec := schema.Record(cp)
		key, warns := buildKey(rec)
		if schema.Strategy() == model.StrategyDateRange && strings.TrimSpace(rec.Date) == "" {
			warns = append(warns, "missing date, row left out of range replacement")
		}
		for _, w := range warns {
			warnings = append(warnings, fmt.Sprintf("row %d: %s", i+1, w))
		}
		if keyIdx >= 0 {
			cp[keyIdx] = key
		}
		out[i] = cp
	}

	return out, warnings, nil
}

// load reads the destination table, creating it when missing. created is true
// when the table has no header yet and must be written from scratch.
func (m *Merger) load(ctx context.Context, schema *Schema) (*service.Table, bool, error) {
	stored, err := m.store.ReadAll(ctx, schema.Table())
	switch {
	case errors.Is(err, common.ErrNotFound):
		m.logger.InfoContext(ctx, "Creating destination table", "table", schema.Table())
		if err := m.store.CreateIfMissing(ctx, schema.Table(), schema.Columns()); err != nil {
			return nil, false, fmt.Errorf("failed to create %s: %w", schema.Table(), err)
		}
		return &service.Table{Name: schema.Table(), Header: schema.Columns()}, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to read %s: %w", schema.Table(), err)
	}

	if len(stored.Header) == 0 {
		stored.Header = schema.Columns()
		return stored, true, nil
	}
	return stored, false, nil
}

func missingColumns(want, header []string) []string {
	var missing []string
	for _, col := range want {
		if indexOf(header, col) < 0 {
			missing = append(missing, col)
		}
	}
	return missing
}

// alignRows places schema-ordered cells at the matching header positions.
// Header columns unknown to the schema stay empty.
func alignRows(schema *Schema, rows []model.Row, header []string) []model.Row {
	positions := make([]int, len(header))
	for i, h := range header {
		positions[i] = schema.Index(h)
	}

	out := make([]model.Row, len(rows))
	for i, row := range rows {
		aligned := make(model.Row, len(header))
		for j, src := range positions {
			if src >= 0 {
				aligned[j] = row[src]
			}
		}
		out[i] = aligned
	}
	return out
}

func stringRow(cells []string, width int) model.Row {
	row := make(model.Row, max(width, len(cells)))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

func serializeRows(rows []model.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = SerializeRow(r)
	}
	return out
}

func indexOf(header []string, col string) int {
	if col == "" {
		return -1
	}
	for i, h := range header {
		if h == col {
			return i
		}
	}
	return -1
}
