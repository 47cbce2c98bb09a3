// Package ingest turns uploaded report exports into rows aligned with a
// report schema.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/ofx"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
)

// ErrUnsupportedFormat is returned for file types no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrMalformedFile is returned when a file of a supported type cannot be
// parsed.
var ErrMalformedFile = errors.New("malformed file")

func malformed(message string, err error) error {
	return common.NewUserError(message, fmt.Errorf("%w: %w", ErrMalformedFile, err))
}

// Supported input formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatOFX  = "ofx"
)

// ofxHeader is the grid layout OFX entries are rendered into before they
// go through the normal header mapping.
var ofxHeader = []string{"data", "documento", "historico", "valor"}

// Batch is the parsed content of one uploaded file.
type Batch struct {
	Source  string
	Format  string
	Rows    []model.Row
	Mapping Mapping
}

// Option configures a Loader.
type Option func(*Loader)

// WithSheet selects the worksheet read from workbooks. The first sheet is
// used otherwise.
func WithSheet(name string) Option {
	return func(l *Loader) {
		l.sheet = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader reads report files.
type Loader struct {
	logger *slog.Logger
	ofx    *ofx.Parser
	sheet  string
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	l.ofx = ofx.NewParser(l.logger)
	return l
}

// FormatOf returns the reader used for filename, judged by extension.
func FormatOf(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".ofx", ".qfx":
		return FormatOFX, nil
	default:
		return "", common.NewUserError(
			fmt.Sprintf("cannot read %q: use .xlsx, .csv or .ofx", filepath.Base(filename)),
			ErrUnsupportedFormat)
	}
}

// Load parses r as the report described by schema. filename only selects
// the reader and labels the batch.
func (l *Loader) Load(ctx context.Context, schema *reconcile.Schema, filename string, r io.Reader) (*Batch, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}

	grid, err := l.readGrid(ctx, schema, format, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}

	mapping, err := MapHeader(schema, grid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}

	batch := &Batch{
		Source:  filepath.Base(filename),
		Format:  format,
		Rows:    mapping.Rows(grid),
		Mapping: mapping,
	}

	l.logger.Info("Loaded report file",
		"file", batch.Source,
		"kind", schema.Kind(),
		"format", format,
		"header_row", mapping.HeaderRow+1,
		"rows", len(batch.Rows),
		"missing_columns", mapping.Missing)

	return batch, nil
}

func (l *Loader) readGrid(ctx context.Context, schema *reconcile.Schema, format string, r io.Reader) ([][]string, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r, l.sheet)
	case FormatCSV:
		return ReadCSV(r)
	case FormatOFX:
		if schema.Kind() != model.KindBankStatement {
			return nil, common.NewUserError(
				fmt.Sprintf("OFX files can only be imported as %s", model.KindBankStatement),
				ErrUnsupportedFormat)
		}
		entries, err := l.ofx.ParseFile(ctx, r)
		if errors.Is(err, ofx.ErrInvalidOFX) {
			return nil, malformed("file is not a readable OFX statement", err)
		}
		if err != nil {
			return nil, err
		}
		return ofxGrid(entries), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func ofxGrid(entries []ofx.Entry) [][]string {
	grid := make([][]string, 0, len(entries)+1)
	grid = append(grid, ofxHeader)
	for _, e := range entries {
		ref := e.FITID
		if ref == "" {
			ref = e.CheckNum
		}
		grid = append(grid, []string{
			e.Date.Format("2006-01-02"),
			ref,
			e.Description,
			e.Amount.StringFixed(2),
		})
	}
	return grid
}
