// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"
)

// Table is a snapshot of a tabular store table. Rows are returned in the
// order they were written; Header is nil when the table is empty.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the position of the named header column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// TabularStore is the spreadsheet-like persistence layer. It has no
// transactions and no row keys; callers serialize their own writes.
type TabularStore interface {
	// ReadAll returns the header and every data row of table.
	ReadAll(ctx context.Context, table string) (*Table, error)
	// Append adds rows after the last data row of table.
	Append(ctx context.Context, table string, rows [][]string) error
	// ClearAndWrite replaces the whole content of table with header and rows.
	ClearAndWrite(ctx context.Context, table string, header []string, rows [][]string) error
	// CreateIfMissing creates table with header unless it already exists.
	CreateIfMissing(ctx context.Context, table string, header []string) error
}

// CredentialDirectory verifies login secrets.
type CredentialDirectory interface {
	Verify(ctx context.Context, identity, secret string) (bool, error)
}

// ImportRecord is one entry of the import audit trail.
type ImportRecord struct {
	CreatedAt  time.Time `json:"created_at"`
	Kind       string    `json:"kind"`
	Table      string    `json:"table"`
	Identity   string    `json:"identity"`
	SourceFile string    `json:"source_file"`
	ID         int64     `json:"id"`
	Received   int       `json:"received"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	Replaced   int       `json:"replaced"`
	Warnings   int       `json:"warnings"`
}

// ImportHistory persists the audit trail of published reports.
type ImportHistory interface {
	RecordImport(ctx context.Context, rec *ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]ImportRecord, error)
}
