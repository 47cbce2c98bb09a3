package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/session"
)

// Defaults for AppConfig.
const (
	DefaultDatabasePath  = "~/.local/share/books/books.db"
	DefaultServerAddress = ":8080"
	DefaultMaxUploadMB   = 32
)

// AppConfig holds everything besides the store credentials.
type AppConfig struct {
	// ReportTables maps a report kind to a destination table override.
	ReportTables  map[string]string
	DatabasePath  string
	ServerAddress string
	SessionTable  string
	TimeZone      string
	IdleTimeout   time.Duration
	MaxUploadMB   int
	SecureCookies bool
}

// Location returns the configured session time zone.
func (c *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", common.ErrInvalidConfig, c.TimeZone, err)
	}
	return loc, nil
}

// Validate checks the configuration.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrInvalidConfig)
	}
	if strings.TrimSpace(c.SessionTable) == "" {
		return fmt.Errorf("%w: session.table is empty", common.ErrInvalidConfig)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: session.idle_timeout must not be negative", common.ErrInvalidConfig)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: server.max_upload_mb must be positive", common.ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// LoadAppConfig reads the application settings from the global viper
// instance.
func LoadAppConfig() (*AppConfig, error) {
	return loadAppConfig(viper.GetViper())
}

func loadAppConfig(v *viper.Viper) (*AppConfig, error) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("server.address", DefaultServerAddress)
	v.SetDefault("server.max_upload_mb", DefaultMaxUploadMB)
	v.SetDefault("session.table", session.DefaultTable)
	v.SetDefault("session.timezone", session.DefaultTimeZone)

	cfg := &AppConfig{
		DatabasePath:  ExpandPath(v.GetString("database.path")),
		ServerAddress: v.GetString("server.address"),
		SecureCookies: v.GetBool("server.secure_cookies"),
		MaxUploadMB:   v.GetInt("server.max_upload_mb"),
		SessionTable:  v.GetString("session.table"),
		TimeZone:      v.GetString("session.timezone"),
		IdleTimeout:   v.GetDuration("session.idle_timeout"),
		ReportTables:  make(map[string]string),
	}

	for _, kind := range model.AllReportKinds() {
		if t := strings.TrimSpace(v.GetString("reports." + string(kind) + ".table")); t != "" {
			cfg.ReportTables[string(kind)] = t
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
