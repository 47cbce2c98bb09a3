package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

var _ service.TabularStore = (*MemoryStore)(nil)

// Store operation names recorded by MemoryStore.
const (
	OpReadAll         = "ReadAll"
	OpAppend          = "Append"
	OpClearAndWrite   = "ClearAndWrite"
	OpCreateIfMissing = "CreateIfMissing"
)

// MemoryStore is an in-memory TabularStore used by tests and dry runs.
type MemoryStore struct {
	tables   map[string]*service.Table
	failures map[string]error
	Calls    []Call
	mu       sync.Mutex
}

// Call represents a single recorded store operation.
type Call struct {
	Op    string
	Table string
	Rows  int
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:   make(map[string]*service.Table),
		failures: make(map[string]error),
	}
}

// Seed replaces table with header and rows.
func (m *MemoryStore) Seed(table string, header []string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables[table] = &service.Table{
		Name:   table,
		Header: copyRow(header),
		Rows:   copyRows(rows),
	}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Snapshot returns a copy of table, or nil when it does not exist.
func (m *MemoryStore) Snapshot(table string) *service.Table {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	return copyTable(t)
}

// CallCount returns how many times op was invoked.
func (m *MemoryStore) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls and injected failures.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.failures = make(map[string]error)
}

// ReadAll implements service.TabularStore.
func (m *MemoryStore) ReadAll(_ context.Context, table string) (*service.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpReadAll, table, 0); err != nil {
		return nil, err
	}

	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, common.ErrNotFound)
	}
	return copyTable(t), nil
}

// Append implements service.TabularStore.
func (m *MemoryStore) Append(_ context.Context, table string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpAppend, table, len(rows)); err != nil {
		return err
	}

	t, ok := m.tables[table]
	if !ok {
		// The Sheets API creates nothing on append to a missing tab.
		return common.StoreError("append", table, fmt.Errorf("table does not exist"))
	}
	t.Rows = append(t.Rows, copyRows(rows)...)
	return nil
}

// ClearAndWrite implements service.TabularStore.
func (m *MemoryStore) ClearAndWrite(_ context.Context, table string, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpClearAndWrite, table, len(rows)); err != nil {
		return err
	}

	m.tables[table] = &service.Table{
		Name:   table,
		Header: copyRow(header),
		Rows:   copyRows(rows),
	}
	return nil
}

// CreateIfMissing implements service.TabularStore.
func (m *MemoryStore) CreateIfMissing(_ context.Context, table string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(OpCreateIfMissing, table, 0); err != nil {
		return err
	}

	if _, ok := m.tables[table]; ok {
		return nil
	}
	m.tables[table] = &service.Table{Name: table, Header: copyRow(header)}
	return nil
}

// record must be called with m.mu held.
func (m *MemoryStore) record(op, table string, rows int) error {
	m.Calls = append(m.Calls, Call{Op: op, Table: table, Rows: rows})
	if err, ok := m.failures[op]; ok {
		return common.StoreError(op, table, err)
	}
	return nil
}

func copyTable(t *service.Table) *service.Table {
	return &service.Table{
		Name:   t.Name,
		Header: copyRow(t.Header),
		Rows:   copyRows(t.Rows),
	}
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r)
	}
	return out
}

func copyRow(row []string) []string {
	if row == nil {
		return nil
	}
	out := make([]string, len(row))
	copy(out, row)
	return out
}
