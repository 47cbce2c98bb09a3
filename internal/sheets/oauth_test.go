package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    bool
	}{
		{"authorized", "?state=s1&code=abc", http.StatusOK, "abc", false},
		{"state mismatch", "?state=other&code=abc", http.StatusBadRequest, "", true},
		{"no code", "?state=s1", http.StatusBadRequest, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			errs := make(chan error, 1)

			rec := httptest.NewRecorder()
			callbackHandler("s1", codes, errs).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantErr {
				assert.Len(t, errs, 1)
				assert.Empty(t, codes)
			} else {
				require.Len(t, codes, 1)
				assert.Equal(t, tt.wantCode, <-codes)
			}
		})
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGetOrCreateToken_UsesValidSavedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))

	token, err := GetOrCreateToken(context.Background(), OAuth2Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    path,
	})
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
}

func TestOAuth2Config_CallbackAddr(t *testing.T) {
	assert.Equal(t, "localhost:8085", OAuth2Config{}.callbackAddr())

	cfg := OAuth2Config{CallbackAddr: "127.0.0.1:9999"}
	assert.Equal(t, "http://127.0.0.1:9999/callback", cfg.oauthConfig().RedirectURL)
}
