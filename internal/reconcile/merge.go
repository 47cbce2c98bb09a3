package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// KeyMerge is the outcome of a key-based merge.
type KeyMerge struct {
	// Kept holds the existing rows, untouched.
	Kept []model.Row
	// Inserted holds incoming rows whose key was not seen before.
	Inserted []model.Row
	// Skipped holds incoming rows whose key already exists, either in the
	// stored rows or earlier in the same batch.
	Skipped []model.Row
}

// MergeByKey partitions incoming by the key stored at keyIdx. A key never
// gains rows: an incoming row is inserted only when neither the existing rows
// nor an earlier incoming row carry the same key. Rows with an empty key
// cannot be matched and are always inserted.
func MergeByKey(existing, incoming []model.Row, keyIdx int) KeyMerge {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, row := range existing {
		if k := cellKey(row.Get(keyIdx)); k != "" {
			seen[k] = struct{}{}
		}
	}

	out := KeyMerge{Kept: existing}
	for _, row := range incoming {
		k := cellKey(row.Get(keyIdx))
		if k == "" {
			out.Inserted = append(out.Inserted, row)
			continue
		}
		if _, dup := seen[k]; dup {
			out.Skipped = append(out.Skipped, row)
			continue
		}
		seen[k] = struct{}{}
		out.Inserted = append(out.Inserted, row)
	}

	return out
}

// RangeMerge is the outcome of a date-range merge.
type RangeMerge struct {
	// Rows is the filtered existing rows followed by every incoming row.
	Rows []model.Row
	// Dates lists the distinct normalized dates of the batch, sorted.
	Dates []string
	// Replaced counts existing rows dropped because their date is in Dates.
	Replaced int
	// Kept counts existing rows that survived.
	Kept int
	// Undated counts incoming rows without a usable date.
	Undated int
}

// MergeByDateRange replaces every existing row dated on a day present in
// incoming. Existing rows without a usable date are never dropped.
func MergeByDateRange(existing, incoming []model.Row, dateIdx int) RangeMerge {
	dates := make(map[string]struct{})
	var out RangeMerge

	for _, row := range incoming {
		d, ok := NormalizeDate(row.Get(dateIdx))
		if !ok {
			out.Undated++
			continue
		}
		dates[d] = struct{}{}
	}

	out.Rows = make([]model.Row, 0, len(existing)+len(incoming))
	for _, row := range existing {
		if d, ok := NormalizeDate(row.Get(dateIdx)); ok {
			if _, replaced := dates[d]; replaced {
				out.Replaced++
				continue
			}
		}
		out.Rows = append(out.Rows, row)
		out.Kept++
	}
	out.Rows = append(out.Rows, incoming...)

	out.Dates = make([]string, 0, len(dates))
	for d := range dates {
		out.Dates = append(out.Dates, d)
	}
	sort.Strings(out.Dates)

	return out
}

func cellKey(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
