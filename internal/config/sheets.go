// Package config loads application settings from viper (config file, BOOKS_*
// environment variables, flags) with GOOGLE_SHEETS_* variables as a
// fallback for the store credentials.
package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-books-must-balance/internal/sheets"
)

// LoadSheetsConfig loads the Google Sheets store configuration from the
// global viper instance.
func LoadSheetsConfig() (*sheets.Config, error) {
	return loadSheetsConfig(viper.GetViper())
}

// loadSheetsConfig follows this precedence:
// 1. viper (config file or BOOKS_ env vars)
// 2. direct environment variables (GOOGLE_SHEETS_*)
// 3. defaults
func loadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = ExpandPath(s)
	}
	config.ClientID = v.GetString("sheets.client_id")
	config.ClientSecret = v.GetString("sheets.client_secret")
	config.RefreshToken = v.GetString("sheets.refresh_token")
	config.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	if s := v.GetString("sheets.spreadsheet_name"); s != "" {
		config.SpreadsheetName = s
	}
	if s := v.GetString("sheets.timezone"); s != "" {
		config.TimeZone = s
	}
	if n := v.GetInt("sheets.batch_size"); n != 0 {
		config.BatchSize = n
	}
	if v.IsSet("sheets.formatting") {
		config.EnableFormatting = v.GetBool("sheets.formatting")
	}

	fallback := []struct {
		dst *string
		env string
	}{
		{&config.ClientID, "GOOGLE_SHEETS_CLIENT_ID"},
		{&config.ClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET"},
		{&config.RefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN"},
		{&config.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID"},
	}
	for _, f := range fallback {
		if *f.dst == "" {
			*f.dst = os.Getenv(f.env)
		}
	}
	if config.ServiceAccountPath == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); s != "" {
			config.ServiceAccountPath = ExpandPath(s)
		}
	}
	if v.GetString("sheets.spreadsheet_name") == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); s != "" {
			config.SpreadsheetName = s
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
