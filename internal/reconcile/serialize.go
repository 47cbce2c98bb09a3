package reconcile

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// SerializeForStore renders header and rows as the store's string cells.
// The header comes first and column order is preserved.
func SerializeForStore(header []string, rows []model.Row) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, append([]string(nil), header...))
	for _, row := range rows {
		out = append(out, SerializeRow(row))
	}
	return out
}

// SerializeRow renders one row without a header.
func SerializeRow(row model.Row) []string {
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = FormatCell(v)
	}
	return cells
}

// FormatCell renders a single value. Missing values, typed nil pointers and
// non-finite floats become empty cells.
func FormatCell(v any) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return FormatCell(rv.Elem().Interface())
	}

	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.StringFixed(2)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(dateLayout)
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
