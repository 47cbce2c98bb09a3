// Package sheets provides the Google Sheets backed tabular store.
package sheets

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
)

// AuthMethod names how the store authenticates with Google.
type AuthMethod string

// Supported authentication methods.
const (
	AuthNone           AuthMethod = ""
	AuthServiceAccount AuthMethod = "service_account"
	AuthOAuth2         AuthMethod = "oauth2"
)

// Config describes the spreadsheet the store is bound to and how to reach it.
// Exactly one of ServiceAccountPath or the OAuth2 triple must be set.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	// SpreadsheetID wins over SpreadsheetName. A name alone creates the
	// spreadsheet on first use.
	SpreadsheetID   string
	SpreadsheetName string
	// TimeZone is applied to spreadsheets the store creates.
	TimeZone string
	// BatchSize caps the rows sent per values request.
	BatchSize        int
	EnableFormatting bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  "Back Office",
		TimeZone:         "America/Sao_Paulo",
		BatchSize:        1000,
	}
}

// AuthMethod reports which credentials are configured. It returns AuthNone
// when neither set is complete.
func (c *Config) AuthMethod() AuthMethod {
	switch {
	case c.ServiceAccountPath != "":
		return AuthServiceAccount
	case c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "":
		return AuthOAuth2
	default:
		return AuthNone
	}
}

// Validate checks that the store can be opened with c.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""

	switch {
	case c.AuthMethod() == AuthNone:
		return fmt.Errorf("%w: no authentication method configured: set a service account path or run 'books auth sheets'",
			common.ErrMissingConfig)
	case hasOAuth && c.ServiceAccountPath != "":
		return fmt.Errorf("%w: multiple authentication methods configured; use either OAuth2 or service account",
			common.ErrInvalidConfig)
	case c.SpreadsheetID == "" && c.SpreadsheetName == "":
		return fmt.Errorf("%w: either spreadsheet ID or spreadsheet name is required", common.ErrMissingConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", common.ErrInvalidConfig)
	}

	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return fmt.Errorf("%w: time zone %q: %v", common.ErrInvalidConfig, c.TimeZone, err)
		}
	}
	return nil
}
