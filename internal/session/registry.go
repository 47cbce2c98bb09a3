package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/google/uuid"
)

// DefaultTable is the session table name used when none is configured.
const DefaultTable = "sessoes"

// DefaultTimeZone is the zone session timestamps are rendered in.
const DefaultTimeZone = "America/Sao_Paulo"

// Option configures a Registry.
type Option func(*Registry)

// WithTable sets the session table name.
func WithTable(table string) Option {
	return func(r *Registry) {
		if table != "" {
			r.table = table
		}
	}
}

// WithLocation sets the zone timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithIdleTimeout makes sessions expire after d without a heartbeat.
// Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idle = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry keeps at most one active session per identity in a tabular store.
//
// The store has no transactions. Writes for one identity are serialized by a
// keyed mutex and every table rewrite holds the table lock exclusively, while
// lookups share it, so inside one process neither rows nor lookups are lost
// to a rewrite in progress. Several processes sharing one table can still
// race.
type Registry struct {
	store      service.TabularStore
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
	identities *common.KeyedMutex
	table      string
	idle       time.Duration
	tableMu    sync.RWMutex
}

// NewRegistry creates a Registry over store.
func NewRegistry(store service.TabularStore, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		table:      DefaultTable,
		loc:        time.UTC,
		now:        time.Now,
		logger:     slog.Default(),
		identities: common.NewKeyedMutex(),
	}
	if loc, err := time.LoadLocation(DefaultTimeZone); err == nil {
		r.loc = loc
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the session table name.
func (r *Registry) Table() string { return r.table }

// Register starts a new session for identity and removes every other session
// it had. Store failures are returned; a login never proceeds without a
// persisted session.
func (r *Registry) Register(ctx context.Context, identity string) (Session, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return Session{}, common.NewUserError("identity is required", nil)
	}

	unlock := r.identities.Lock(identity)
	defer unlock()
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	if err := r.store.CreateIfMissing(ctx, r.table, Header); err != nil {
		return Session{}, r.storeErr("create", err)
	}

	table, err := r.read(ctx)
	if err != nil {
		return Session{}, err
	}

	remaining := make([][]string, 0, len(table.Rows)+1)
	removed := 0
	for _, row := range table.Rows {
		if rowIdentity(row) == identity {
			removed++
			continue
		}
		remaining = append(remaining, row)
	}

	now := r.now().In(r.loc).Truncate(time.Second)
	s := Session{
		Identity:  identity,
		Token:     uuid.NewString(),
		CreatedAt: now,
		LastSeen:  now,
	}
	if r.idle > 0 {
		s.Expiry = now.Add(r.idle)
	}

	if removed > 0 || len(table.Header) == 0 {
		err = r.store.ClearAndWrite(ctx, r.table, Header, append(remaining, s.row(r.loc)))
	} else {
		err = r.store.Append(ctx, r.table, [][]string{s.row(r.loc)})
	}
	if err != nil {
		return Session{}, r.storeErr("register", err)
	}

	r.logger.InfoContext(ctx, "Session registered", "identity", identity, "preempted", removed)
	return s, nil
}

// Check returns the session for identity when token is its current token.
// It returns ErrSessionInvalid for unknown, superseded or expired sessions and
// ErrStoreUnavailable when the table cannot be read.
func (r *Registry) Check(ctx context.Context, identity, token string) (Session, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" || token == "" {
		return Session{}, common.ErrSessionInvalid
	}

	r.tableMu.RLock()
	defer r.tableMu.RUnlock()

	table, err := r.read(ctx)
	if err != nil {
		return Session{}, err
	}

	for _, row := range table.Rows {
		if rowIdentity(row) != identity || len(row) <= colToken {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(row[colToken]), []byte(token)) != 1 {
			continue
		}

		s := parseRow(row, r.loc, r.idle)
		if r.idle > 0 && (s.Expiry.IsZero() || s.Expired(r.now())) {
			return Session{}, fmt.Errorf("%w: session expired", common.ErrSessionInvalid)
		}
		return s, nil
	}

	return Session{}, common.ErrSessionInvalid
}

// Validate reports whether token is the current token of identity. Any store
// failure counts as an invalid session.
func (r *Registry) Validate(ctx context.Context, identity, token string) bool {
	_, err := r.Check(ctx, identity, token)
	if errors.Is(err, common.ErrStoreUnavailable) {
		r.logger.WarnContext(ctx, "Session lookup failed, denying access", "identity", identity, "error", err)
	}
	return err == nil
}

// Refresh records a heartbeat for identity. It is a no-op when the identity
// has no session.
func (r *Registry) Refresh(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil
	}

	unlock := r.identities.Lock(identity)
	defer unlock()
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	table, err := r.read(ctx)
	if err != nil {
		return err
	}

	stamp := r.now().In(r.loc).Format(time.RFC3339)
	found := false
	rows := make([][]string, len(table.Rows))
	for i, row := range table.Rows {
		if rowIdentity(row) == identity {
			row = padRow(row)
			row[colLastSeen] = stamp
			found = true
		}
		rows[i] = row
	}
	if !found {
		return nil
	}

	if err := r.store.ClearAndWrite(ctx, r.table, Header, rows); err != nil {
		return r.storeErr("refresh", err)
	}
	return nil
}

// Revoke deletes every session of identity.
func (r *Registry) Revoke(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil
	}

	unlock := r.identities.Lock(identity)
	defer unlock()
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	table, err := r.read(ctx)
	if err != nil {
		return err
	}

	remaining := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if rowIdentity(row) != identity {
			remaining = append(remaining, row)
		}
	}
	if len(remaining) == len(table.Rows) {
		return nil
	}

	if err := r.store.ClearAndWrite(ctx, r.table, Header, remaining); err != nil {
		return r.storeErr("revoke", err)
	}

	r.logger.InfoContext(ctx, "Session revoked", "identity", identity)
	return nil
}

// List returns every stored session in table order.
func (r *Registry) List(ctx context.Context) ([]Session, error) {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()

	table, err := r.read(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(table.Rows))
	for _, row := range table.Rows {
		s := parseRow(row, r.loc, r.idle)
		if s.Identity == "" {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// read loads the session table. A missing table reads as empty.
func (r *Registry) read(ctx context.Context) (*service.Table, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if errors.Is(err, common.ErrNotFound) {
		return &service.Table{Name: r.table}, nil
	}
	if err != nil {
		return nil, r.storeErr("read", err)
	}
	return table, nil
}

func (r *Registry) storeErr(op string, err error) error {
	if errors.Is(err, common.ErrStoreUnavailable) {
		return fmt.Errorf("session %s: %w", op, err)
	}
	return common.StoreError(op, r.table, err)
}

func rowIdentity(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return NormalizeIdentity(row[colIdentity])
}

func padRow(row []string) []string {
	if len(row) >= len(Header) {
		out := make([]string, len(row))
		copy(out, row)
		return out
	}
	out := make([]string, len(Header))
	copy(out, row)
	return out
}
