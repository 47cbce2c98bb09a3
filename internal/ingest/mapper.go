package ingest

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
)

// ErrUnrecognizedLayout is returned when no header row of a file can be
// matched to the report's columns.
var ErrUnrecognizedLayout = errors.New("unrecognized report layout")

// headerScanRows bounds how far down the sheet the header row may sit.
// Exports usually carry a title block above it.
const headerScanRows = 20

// NormalizeHeader folds a column title for matching: accents stripped,
// lower-cased, punctuation turned into single spaces. '%' survives so a
// bare "%" column can still be matched.
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMark), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '%':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

func isMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// Mapping ties a file's columns to a schema.
type Mapping struct {
	// Columns holds, per schema column, the file column index or -1.
	Columns   []int
	Matched   []string
	Missing   []string
	HeaderRow int
}

// Found reports whether the schema column was located in the file.
func (m Mapping) Found(idx int) bool {
	return idx >= 0 && idx < len(m.Columns) && m.Columns[idx] >= 0
}

// MapHeader locates the header row among the first rows of grid and
// matches it to schema. A file in which none of the schema's role columns
// appear is rejected.
func MapHeader(schema *reconcile.Schema, grid [][]string) (Mapping, error) {
	candidates := headerCandidates(schema)

	best := Mapping{HeaderRow: -1}
	bestScore := 0
	for i := 0; i < len(grid) && i < headerScanRows; i++ {
		if isEmptyRow(grid[i]) {
			continue
		}
		m := matchRow(schema, candidates, grid[i])
		m.HeaderRow = i
		if len(m.Matched) > bestScore {
			best, bestScore = m, len(m.Matched)
		}
	}

	if bestScore == 0 || !hasRoleColumn(schema, best) {
		msg := fmt.Sprintf("file does not look like a %s report: expected columns such as %s",
			schema.Kind(), strings.Join(roleColumnNames(schema), ", "))
		return Mapping{}, common.NewUserError(msg, ErrUnrecognizedLayout)
	}
	return best, nil
}

// Rows converts the data rows under the header into schema-aligned rows.
// Blank lines are dropped and absent columns are left nil.
func (m Mapping) Rows(grid [][]string) []model.Row {
	var rows []model.Row
	for i := m.HeaderRow + 1; i < len(grid); i++ {
		line := grid[i]
		if isEmptyRow(line) {
			continue
		}
		row := make(model.Row, len(m.Columns))
		for c, src := range m.Columns {
			if src < 0 || src >= len(line) {
				continue
			}
			row[c] = strings.TrimSpace(line[src])
		}
		rows = append(rows, row)
	}
	return rows
}

// headerCandidates returns, per schema column, the folded spellings it
// answers to. The key column is never read from files.
func headerCandidates(schema *reconcile.Schema) [][]string {
	key := schema.Roles().Key
	columns := schema.Columns()
	out := make([][]string, len(columns))
	for i, col := range columns {
		if col == key {
			continue
		}
		names := []string{NormalizeHeader(col)}
		for _, alias := range schema.Aliases(col) {
			names = append(names, NormalizeHeader(alias))
		}
		out[i] = names
	}
	return out
}

func matchRow(schema *reconcile.Schema, candidates [][]string, header []string) Mapping {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = NormalizeHeader(h)
	}

	m := Mapping{Columns: make([]int, len(candidates))}
	used := make(map[int]bool)
	columns := schema.Columns()

	// Exact column names win over aliases so that "valor" is not taken by
	// an earlier "valor total" alias match.
	for pass := 0; pass < 2; pass++ {
		for c, names := range candidates {
			if pass == 0 {
				m.Columns[c] = -1
			}
			if len(names) == 0 || (pass == 1 && m.Columns[c] >= 0) {
				continue
			}
			want := names[:1]
			if pass == 1 {
				want = names[1:]
			}
			if idx := findHeader(folded, want, used); idx >= 0 {
				m.Columns[c] = idx
				used[idx] = true
			}
		}
	}

	for c, idx := range m.Columns {
		if idx >= 0 {
			m.Matched = append(m.Matched, columns[c])
		} else if len(candidates[c]) > 0 {
			m.Missing = append(m.Missing, columns[c])
		}
	}
	return m
}

func findHeader(folded, names []string, used map[int]bool) int {
	for _, name := range names {
		if name == "" {
			continue
		}
		for i, h := range folded {
			if !used[i] && h == name {
				return i
			}
		}
	}
	return -1
}

func hasRoleColumn(schema *reconcile.Schema, m Mapping) bool {
	for _, col := range roleColumnNames(schema) {
		if m.Found(schema.Index(col)) {
			return true
		}
	}
	return false
}

func roleColumnNames(schema *reconcile.Schema) []string {
	r := schema.Roles()
	var out []string
	seen := make(map[string]bool)
	for _, col := range []string{r.Date, r.Time, r.Reference, r.Amount, r.Description} {
		if col != "" && !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}
