// Package reconcile merges freshly parsed report batches into stored tables
// without duplicating or leaving stale rows behind.
package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
	keySep     = "|"
)

// Sheets serial dates count days from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Serial days accepted from text, roughly the years 1954 to 2119.
const (
	minTextSerial = 20000
	maxTextSerial = 80000
)

var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2-1-2006",
	"2.1.2006",
	"20060102",
}

var timeLayouts = []string{
	timeLayout,
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"15h04",
}

// BuildDuplicateKey fingerprints the business content of a record. Records
// that differ only in formatting (case, spacing, locale-formatted amounts)
// produce the same key.
func BuildDuplicateKey(r model.Record) string {
	key, _ := buildKey(r)
	return key
}

// buildKey returns the duplicate key plus a description of every field that
// had to be coerced to its empty or zero value.
func buildKey(r model.Record) (string, []string) {
	var warnings []string

	date, ok := NormalizeDate(r.Date)
	if !ok && strings.TrimSpace(r.Date) != "" {
		warnings = append(warnings, fmt.Sprintf("unparseable date %q", r.Date))
	}

	clock, ok := NormalizeTime(r.Time)
	if !ok && strings.TrimSpace(r.Time) != "" {
		warnings = append(warnings, fmt.Sprintf("unparseable time %q", r.Time))
	}

	var cents int64
	if strings.TrimSpace(r.Amount) != "" {
		c, err := ParseCents(r.Amount)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("unparseable amount %q, using 0", r.Amount))
		} else {
			cents = c
		}
	}

	key := strings.Join([]string{
		date,
		clock,
		strings.TrimSpace(r.Reference),
		strconv.FormatInt(cents, 10),
		NormalizeDescription(r.Description),
	}, keySep)

	return key, warnings
}

// ParseCents parses a locale-formatted money string into integer cents.
//
// Currency symbols and spaces are ignored. When both ',' and '.' appear the
// right-most one is the decimal separator. A single ',' is decimal. A single
// '.' is decimal unless exactly three digits follow it and the integer part
// is not zero, so "1.234" reads as 1234 the way pt-BR writes it. A separator
// repeated more than once is a thousands separator. Parentheses or a leading
// or trailing '-' make the value negative. Amounts that do not fit in int64
// cents are rejected.
func ParseCents(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = s[:len(s)-1]
	}

	if s == "" || strings.ContainsRune(s, '-') {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	s = canonicalDecimal(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}

	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("amount %q out of range", raw)
	}
	return cents.IntPart(), nil
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// canonicalDecimal rewrites s, which holds only digits, ',' and '.', so that
// '.' is the only remaining separator and marks the decimal point.
func canonicalDecimal(s string) string {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	case dots == 1 && groupedThousands(s):
		return strings.Replace(s, ".", "", 1)
	default:
		return s
	}
}

// groupedThousands reports whether the single '.' in s groups thousands:
// exactly three digits follow it and the integer part is neither empty nor
// zero.
func groupedThousands(s string) bool {
	i := strings.IndexByte(s, '.')
	intPart, frac := s[:i], s[i+1:]
	return len(frac) == 3 && strings.TrimLeft(intPart, "0") != ""
}

// NormalizeDate renders v as YYYY-MM-DD. It accepts time.Time, numeric
// spreadsheet serial days and the date layouts found in the exports.
func NormalizeDate(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.Format(dateLayout), true
	case *time.Time:
		if x == nil {
			return "", false
		}
		return NormalizeDate(*x)
	case float64:
		return serialDate(x)
	case float32:
		return serialDate(float64(x))
	case int:
		return serialDate(float64(x))
	case int64:
		return serialDate(float64(x))
	case decimal.Decimal:
		return serialDate(x.InexactFloat64())
	case string:
		return parseDate(x)
	default:
		return parseDate(fmt.Sprint(x))
	}
}

func parseDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), true
		}
	}

	// Numbers in text cells only count as serial days inside a plausible
	// window; "202401" or "2024" are periods, not dates.
	if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil &&
		f >= minTextSerial && f < maxTextSerial {
		return serialDate(f)
	}

	return "", false
}

func serialDate(days float64) (string, bool) {
	// 2958465 is 9999-12-31.
	if math.IsNaN(days) || days < 1 || days > 2958465 {
		return "", false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(days))).Format(dateLayout), true
}

// NormalizeTime renders v as HH:MM:SS. Numeric values are read as a
// fraction of a day, the way spreadsheets store times.
func NormalizeTime(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.Format(timeLayout), true
	case float64:
		return dayFraction(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(timeLayout), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return dayFraction(f)
		}
		return "", false
	default:
		return NormalizeTime(fmt.Sprint(x))
	}
}

func dayFraction(f float64) (string, bool) {
	if math.IsNaN(f) || f < 0 {
		return "", false
	}
	_, frac := math.Modf(f)
	seconds := int(math.Round(frac * 86400))
	if seconds >= 86400 {
		seconds = 86399
	}
	t := time.Date(2000, 1, 1, 0, 0, seconds, 0, time.UTC)
	return t.Format(timeLayout), true
}

// NormalizeDescription lower-cases s, strips accents and collapses runs of
// whitespace into single spaces.
func NormalizeDescription(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
