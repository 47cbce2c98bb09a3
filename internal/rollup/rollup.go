// Package rollup consolidates the income statement (DRE) tabs of several
// store workbooks into a single table.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// DefaultLineHeader names the account line column when no source has one.
const DefaultLineHeader = "conta"

// ErrNoSources is returned when none of the sources could be read.
var ErrNoSources = errors.New("no DRE source could be read")

// Source is one workbook tab taking part in the rollup.
type Source struct {
	Store service.TabularStore
	Name  string
	Table string
}

// Options controls where the rollup is written.
type Options struct {
	Dest      service.TabularStore
	Logger    *slog.Logger
	DestTable string
	// LineHeader overrides the first column title of the output.
	LineHeader string
	// Progress, when set, is called after each source is processed.
	Progress func(done, total int)
}

// Result describes a finished rollup.
type Result struct {
	Table    string   `json:"table"`
	Header   []string `json:"header"`
	Missing  []string `json:"missing,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Lines    int      `json:"lines"`
	Sources  int      `json:"sources"`
}

type line struct {
	label string
	sums  map[string]decimal.Decimal
}

type accumulator struct {
	lineIndex map[string]int
	lines     []*line
	columns   []string
	seenCol   map[string]bool
	header    string
	warnings  []string
}

func newAccumulator() *accumulator {
	return &accumulator{
		lineIndex: make(map[string]int),
		seenCol:   make(map[string]bool),
	}
}

// Consolidate sums every (line, column) cell across sources and writes the
// result to opts.DestTable with ClearAndWrite. Lines and columns keep the
// order in which they were first seen. Sources whose table does not exist
// are listed in Result.Missing; any other read failure aborts before
// anything is written.
func Consolidate(ctx context.Context, sources []Source, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Dest == nil || strings.TrimSpace(opts.DestTable) == "" {
		return Result{}, fmt.Errorf("%w: rollup destination is required", common.ErrInvalidConfig)
	}

	acc := newAccumulator()
	result := Result{Table: opts.DestTable}

	for i, src := range sources {
		table, err := src.Store.ReadAll(ctx, src.Table)
		switch {
		case errors.Is(err, common.ErrNotFound):
			logger.Warn("DRE source missing", "source", src.Name, "table", src.Table)
			result.Missing = append(result.Missing, src.Name)
		case err != nil:
			return Result{}, fmt.Errorf("reading %s: %w", src.Name, err)
		case len(table.Header) == 0:
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: table %q is empty", src.Name, src.Table))
			result.Sources++
		default:
			acc.add(src.Name, table)
			result.Sources++
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(sources))
		}
	}

	if result.Sources == 0 {
		return result, ErrNoSources
	}

	header, rows := acc.render(opts.LineHeader)
	if err := opts.Dest.ClearAndWrite(ctx, opts.DestTable, header, rows); err != nil {
		return result, fmt.Errorf("writing rollup to %s: %w", opts.DestTable, err)
	}

	result.Header = header
	result.Lines = len(rows)
	result.Warnings = append(result.Warnings, acc.warnings...)

	logger.Info("Consolidated DRE",
		"table", opts.DestTable,
		"sources", result.Sources,
		"missing", len(result.Missing),
		"lines", result.Lines,
		"warnings", len(result.Warnings))

	return result, nil
}

func (a *accumulator) add(source string, table *service.Table) {
	if a.header == "" {
		a.header = strings.TrimSpace(table.Header[0])
	}

	cols := make([]string, len(table.Header))
	for i, h := range table.Header {
		cols[i] = strings.TrimSpace(h)
		if i == 0 || cols[i] == "" || a.seenCol[cols[i]] {
			continue
		}
		a.seenCol[cols[i]] = true
		a.columns = append(a.columns, cols[i])
	}

	for _, row := range table.Rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		l := a.line(row[0])

		for i := 1; i < len(row) && i < len(cols); i++ {
			raw := strings.TrimSpace(row[i])
			if raw == "" || cols[i] == "" {
				continue
			}
			cents, err := reconcile.ParseCents(raw)
			if err != nil {
				a.warnings = append(a.warnings,
					fmt.Sprintf("%s: %s / %s: unreadable value %q counted as 0", source, l.label, cols[i], raw))
				continue
			}
			l.sums[cols[i]] = l.sums[cols[i]].Add(decimal.New(cents, -2))
		}
	}
}

// line returns the accumulator line for label. Labels are matched without
// regard to case, accents or spacing; the first spelling seen is kept.
func (a *accumulator) line(label string) *line {
	key := reconcile.NormalizeDescription(label)
	if idx, ok := a.lineIndex[key]; ok {
		return a.lines[idx]
	}
	l := &line{label: strings.TrimSpace(label), sums: make(map[string]decimal.Decimal)}
	a.lineIndex[key] = len(a.lines)
	a.lines = append(a.lines, l)
	return l
}

func (a *accumulator) render(lineHeader string) ([]string, [][]string) {
	first := lineHeader
	if first == "" {
		first = a.header
	}
	if first == "" {
		first = DefaultLineHeader
	}

	header := append([]string{first}, a.columns...)
	rows := make([][]string, 0, len(a.lines))
	for _, l := range a.lines {
		row := make([]string, 0, len(header))
		row = append(row, l.label)
		for _, col := range a.columns {
			row = append(row, l.sums[col].StringFixed(2))
		}
		rows = append(rows, row)
	}
	return header, rows
}
