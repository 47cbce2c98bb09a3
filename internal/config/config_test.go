package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-books-must-balance/internal/common"
)

func clearSheetsEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_SPREADSHEET_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadSheetsConfig_Viper(t *testing.T) {
	clearSheetsEnv(t)
	v := viper.New()
	v.Set("sheets.service_account_path", "/etc/books/sa.json")
	v.Set("sheets.spreadsheet_id", "abc123")
	v.Set("sheets.batch_size", 250)
	v.Set("sheets.formatting", false)

	cfg, err := loadSheetsConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "/etc/books/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "abc123", cfg.SpreadsheetID)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.False(t, cfg.EnableFormatting)
	assert.Equal(t, "America/Sao_Paulo", cfg.TimeZone)
}

func TestLoadSheetsConfig_EnvFallback(t *testing.T) {
	clearSheetsEnv(t)
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "refresh")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "Loja Centro")

	v := viper.New()
	v.Set("sheets.client_id", "from-viper")

	cfg, err := loadSheetsConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "from-viper", cfg.ClientID, "viper wins over the environment")
	assert.Equal(t, "secret", cfg.ClientSecret)
	assert.Equal(t, "Loja Centro", cfg.SpreadsheetName)
}

func TestLoadSheetsConfig_NoAuth(t *testing.T) {
	clearSheetsEnv(t)

	_, err := loadSheetsConfig(viper.New())
	assert.Error(t, err)
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/op")

	cfg, err := loadAppConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/home/op", ".local/share/books/books.db"), cfg.DatabasePath)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "sessoes", cfg.SessionTable)
	assert.Equal(t, "America/Sao_Paulo", cfg.TimeZone)
	assert.Equal(t, time.Duration(0), cfg.IdleTimeout)
	assert.Equal(t, 32, cfg.MaxUploadMB)
	assert.Empty(t, cfg.ReportTables)
}

func TestLoadAppConfig_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("database.path", "/var/lib/books.db")
	v.Set("session.table", "logins")
	v.Set("session.timezone", "UTC")
	v.Set("session.idle_timeout", "8h")
	v.Set("reports.sangria.table", "Sangrias 2024")
	v.Set("reports.unknown_kind.table", "ignored")

	cfg, err := loadAppConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/books.db", cfg.DatabasePath)
	assert.Equal(t, "logins", cfg.SessionTable)
	assert.Equal(t, 8*time.Hour, cfg.IdleTimeout)
	assert.Equal(t, map[string]string{"sangria": "Sangrias 2024"}, cfg.ReportTables)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"bad time zone", "session.timezone", "Mars/Olympus"},
		{"negative idle timeout", "session.idle_timeout", "-1m"},
		{"empty session table", "session.table", " "},
		{"zero upload size", "server.max_upload_mb", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)

			_, err := loadAppConfig(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/op")
	t.Setenv("BOOKS_DIR", "/srv/books")

	assert.Equal(t, "/home/op", ExpandPath("~"))
	assert.Equal(t, "/home/op/data/x.db", ExpandPath("~/data/x.db"))
	assert.Equal(t, "/srv/books/x.db", ExpandPath("$BOOKS_DIR/x.db"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
	assert.Equal(t, "", ExpandPath(""))
}
