// Package model holds the value types shared by the reconciliation pipeline.
package model

// Row is one table row aligned with a report schema's column order.
// Cells hold string, int, int64, float64, decimal.Decimal, time.Time or nil.
type Row []any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Get returns the cell at idx, or nil when idx is out of range.
func (r Row) Get(idx int) any {
	if idx < 0 || idx >= len(r) {
		return nil
	}
	return r[idx]
}

// Record is the business content of a row used for duplicate detection.
// Fields carry the raw text read from the source; normalization happens
// when the duplicate key is built.
type Record struct {
	Date        string
	Time        string
	Reference   string
	Amount      string
	Description string
}
