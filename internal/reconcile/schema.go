package reconcile

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Roles names the schema columns that carry the fields used for
// reconciliation. Empty roles are absent from the report.
type Roles struct {
	Date        string
	Time        string
	Reference   string
	Amount      string
	Description string
	// Key is the column that receives the stamped duplicate key.
	Key string
}

// Definition describes a report schema before validation.
type Definition struct {
	Aliases  map[string][]string
	Kind     model.ReportKind
	Table    string
	Strategy model.MergeStrategy
	Columns  []string
	Roles    Roles
}

// Schema is a validated report layout. Every role it carries is known to
// name one of its columns.
type Schema struct {
	aliases  map[string][]string
	index    map[string]int
	kind     model.ReportKind
	table    string
	strategy model.MergeStrategy
	columns  []string
	roles    Roles
}

// NewSchema validates def and builds a Schema from it.
func NewSchema(def Definition) (*Schema, error) {
	if strings.TrimSpace(def.Table) == "" {
		return nil, fmt.Errorf("%w: schema %q has no table", common.ErrInvalidConfig, def.Kind)
	}
	if len(def.Columns) == 0 {
		return nil, fmt.Errorf("%w: schema %q has no columns", common.ErrInvalidConfig, def.Kind)
	}

	s := &Schema{
		kind:     def.Kind,
		table:    def.Table,
		strategy: def.Strategy,
		columns:  append([]string(nil), def.Columns...),
		roles:    def.Roles,
		index:    make(map[string]int, len(def.Columns)),
		aliases:  make(map[string][]string, len(def.Aliases)),
	}

	for i, col := range s.columns {
		if strings.TrimSpace(col) == "" {
			return nil, fmt.Errorf("%w: schema %q has an empty column name at position %d", common.ErrInvalidConfig, def.Kind, i)
		}
		if _, dup := s.index[col]; dup {
			return nil, fmt.Errorf("%w: schema %q declares column %q twice", common.ErrInvalidConfig, def.Kind, col)
		}
		s.index[col] = i
	}

	for role, col := range s.roleColumns() {
		if col == "" {
			continue
		}
		if _, ok := s.index[col]; !ok {
			return nil, fmt.Errorf("%w: schema %q role %s names undeclared column %q", common.ErrInvalidConfig, def.Kind, role, col)
		}
	}

	switch def.Strategy {
	case model.StrategyKey:
		if def.Roles.Key == "" {
			return nil, fmt.Errorf("%w: schema %q uses key strategy without a key column", common.ErrInvalidConfig, def.Kind)
		}
	case model.StrategyDateRange:
		if def.Roles.Date == "" {
			return nil, fmt.Errorf("%w: schema %q uses date_range strategy without a date column", common.ErrInvalidConfig, def.Kind)
		}
	default:
		return nil, fmt.Errorf("%w: schema %q has unknown strategy %q", common.ErrInvalidConfig, def.Kind, def.Strategy)
	}

	if def.Roles.Key != "" && def.Roles.Date == "" && def.Roles.Reference == "" && def.Roles.Amount == "" && def.Roles.Description == "" {
		return nil, fmt.Errorf("%w: schema %q has a key column but nothing to build the key from", common.ErrInvalidConfig, def.Kind)
	}

	for col, names := range def.Aliases {
		if _, ok := s.index[col]; !ok {
			return nil, fmt.Errorf("%w: schema %q has aliases for undeclared column %q", common.ErrInvalidConfig, def.Kind, col)
		}
		s.aliases[col] = append([]string(nil), names...)
	}

	return s, nil
}

func (s *Schema) roleColumns() map[string]string {
	return map[string]string{
		"date":        s.roles.Date,
		"time":        s.roles.Time,
		"reference":   s.roles.Reference,
		"amount":      s.roles.Amount,
		"description": s.roles.Description,
		"key":         s.roles.Key,
	}
}

// Kind returns the report kind.
func (s *Schema) Kind() model.ReportKind { return s.kind }

// Table returns the destination table name.
func (s *Schema) Table() string { return s.table }

// Strategy returns the merge strategy.
func (s *Schema) Strategy() model.MergeStrategy { return s.strategy }

// Roles returns the role assignments.
func (s *Schema) Roles() Roles { return s.roles }

// Columns returns a copy of the column list.
func (s *Schema) Columns() []string { return append([]string(nil), s.columns...) }

// Width returns the number of columns.
func (s *Schema) Width() int { return len(s.columns) }

// Aliases returns the alternative header names accepted for col.
func (s *Schema) Aliases(col string) []string { return s.aliases[col] }

// Index returns the position of col, or -1.
func (s *Schema) Index(col string) int {
	if col == "" {
		return -1
	}
	if i, ok := s.index[col]; ok {
		return i
	}
	return -1
}

// WithTable returns a copy of the schema bound to another table.
func (s *Schema) WithTable(table string) *Schema {
	cp := *s
	cp.table = table
	return &cp
}

// Record extracts the reconciliation fields of a row laid out in schema order.
func (s *Schema) Record(row model.Row) model.Record {
	field := func(col string) string {
		return FormatCell(row.Get(s.Index(col)))
	}
	return model.Record{
		Date:        field(s.roles.Date),
		Time:        field(s.roles.Time),
		Reference:   field(s.roles.Reference),
		Amount:      field(s.roles.Amount),
		Description: field(s.roles.Description),
	}
}
