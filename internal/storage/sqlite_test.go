package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func TestMigrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}

	var tables int
	err = store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name IN ('users', 'import_history')
	`).Scan(&tables)
	if err != nil {
		t.Fatalf("Failed to inspect schema: %v", err)
	}
	if tables != 2 {
		t.Errorf("found %d tables, want 2", tables)
	}
}

func TestMigrate_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage(" "); !errors.Is(err, ErrEmptyString) {
		t.Errorf("NewSQLiteStorage(\" \") error = %v, want ErrEmptyString", err)
	}
}

func TestUsers(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	user := &model.User{
		Email:        "  Ana@Loja.com ",
		PasswordHash: "$2a$10$hash",
		DisplayName:  "Ana",
		Active:       true,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if user.Email != "ana@loja.com" {
		t.Errorf("email stored as %q, want normalized", user.Email)
	}

	got, err := store.GetUser(ctx, "ANA@loja.com")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if got.DisplayName != "Ana" || !got.Active || got.PasswordHash != user.PasswordHash {
		t.Errorf("GetUser() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not stored")
	}

	dup := &model.User{Email: "ana@loja.com", PasswordHash: "other"}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrDuplicateEntry", err)
	}

	if err := store.SetUserActive(ctx, "ana@loja.com", false); err != nil {
		t.Fatalf("SetUserActive() error: %v", err)
	}
	got, err = store.GetUser(ctx, "ana@loja.com")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if got.Active {
		t.Error("user still active after disable")
	}

	if err := store.SetPassword(ctx, "ana@loja.com", "$2a$10$new"); err != nil {
		t.Fatalf("SetPassword() error: %v", err)
	}
	got, _ = store.GetUser(ctx, "ana@loja.com")
	if got.PasswordHash != "$2a$10$new" {
		t.Errorf("password hash = %q", got.PasswordHash)
	}
}

func TestUsers_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.GetUser(ctx, "ghost@x.com"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
	if err := store.SetUserActive(ctx, "ghost@x.com", true); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("SetUserActive() error = %v, want ErrNotFound", err)
	}
	if err := store.SetPassword(ctx, "ghost@x.com", "h"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("SetPassword() error = %v, want ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		if err := store.CreateUser(ctx, &model.User{Email: email, PasswordHash: "h", Active: true}); err != nil {
			t.Fatalf("CreateUser(%s) error: %v", email, err)
		}
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("ListUsers() returned %d users, want 3", len(users))
	}
	for i, want := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if users[i].Email != want {
			t.Errorf("users[%d] = %s, want %s", i, users[i].Email, want)
		}
	}
}

func TestImportHistory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := &service.ImportRecord{
			Kind:       "sangria",
			Table:      "sangrias",
			Identity:   "a@x.com",
			SourceFile: "sangria.xlsx",
			Received:   10,
			Inserted:   10 - i,
			Skipped:    i,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.RecordImport(ctx, rec); err != nil {
			t.Fatalf("RecordImport() error: %v", err)
		}
		if rec.ID == 0 {
			t.Error("RecordImport() did not set ID")
		}
	}

	records, err := store.ListImports(ctx, 2)
	if err != nil {
		t.Fatalf("ListImports() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListImports(2) returned %d records", len(records))
	}
	if records[0].Skipped != 2 || records[1].Skipped != 1 {
		t.Errorf("records not newest first: %+v", records)
	}
	if !records[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("CreatedAt = %v", records[0].CreatedAt)
	}

	all, err := store.ListImports(ctx, 0)
	if err != nil {
		t.Fatalf("ListImports(0) error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListImports(0) returned %d records, want 3", len(all))
	}
}

func TestStorageValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	//nolint:staticcheck // nil context is the point of the test
	if err := store.Migrate(nil); !errors.Is(err, ErrNilContext) {
		t.Errorf("Migrate(nil) error = %v", err)
	}
	//nolint:staticcheck
	if _, err := store.ListUsers(nil); !errors.Is(err, ErrNilContext) {
		t.Errorf("ListUsers(nil) error = %v", err)
	}
	if err := store.RecordImport(context.Background(), &service.ImportRecord{}); !errors.Is(err, ErrInvalidImport) {
		t.Errorf("RecordImport(empty) error = %v", err)
	}
}
