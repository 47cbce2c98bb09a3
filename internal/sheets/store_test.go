package sheets

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTableRange(t *testing.T) {
	assert.Equal(t, "'sessoes'", tableRange("sessoes"))
	assert.Equal(t, "'Loja 1 - DRE'", tableRange("Loja 1 - DRE"))
	assert.Equal(t, "'O''Brien'", tableRange("O'Brien"))
}

func TestBatches(t *testing.T) {
	rows := [][]string{{"1"}, {"2"}, {"3"}, {"4"}, {"5"}}

	got := batches(rows, 2)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].start)
	assert.Equal(t, 2, got[1].start)
	assert.Equal(t, 4, got[2].start)
	assert.Equal(t, [][]string{{"5"}}, got[2].rows)

	assert.Empty(t, batches(nil, 10))
	assert.Len(t, batches(rows, 0), 1, "non-positive size writes a single batch")
}

func TestToTable(t *testing.T) {
	values := [][]any{
		{"identity", "token", " date ", "time", "last_seen"},
		{"a@x.com", "tok-1"},
		{},
		{"", "  "},
		{"b@x.com", "tok-2", "2024-01-01", "10:00:00", "2024-01-01T10:00:00-03:00"},
		{1234.5, true, nil},
	}

	table := toTable("sessoes", values)

	assert.Equal(t, "sessoes", table.Name)
	assert.Equal(t, []string{"identity", "token", "date", "time", "last_seen"}, table.Header)
	require.Len(t, table.Rows, 3, "blank rows are dropped")
	assert.Equal(t, []string{"a@x.com", "tok-1", "", "", ""}, table.Rows[0], "short rows are padded")
	assert.Equal(t, "b@x.com", table.Rows[1][0])
	assert.Equal(t, []string{"1234.5", "true", "", "", ""}, table.Rows[2])
}

func TestToTable_Empty(t *testing.T) {
	table := toTable("vazia", nil)
	assert.Nil(t, table.Header)
	assert.Empty(t, table.Rows)
}

func TestHeaderFormatting(t *testing.T) {
	requests := headerFormatting(42, 5)
	require.Len(t, requests, 2)
	assert.Equal(t, int64(42), requests[0].RepeatCell.Range.SheetId)
	assert.Equal(t, int64(5), requests[0].RepeatCell.Range.EndColumnIndex)
	assert.Equal(t, int64(1), requests[1].UpdateSheetProperties.Properties.GridProperties.FrozenRowCount)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))
}

func TestLeftoverRanges(t *testing.T) {
	tests := []struct {
		name                      string
		table                     string
		want                      []string
		height, width, rows, cols int
	}{
		{"shrunk rows", "sessoes", []string{"'sessoes'!A4:E1000"}, 3, 5, 1000, 5},
		{"shrunk rows and columns", "DRE", []string{"'DRE'!A3:Z1000", "'DRE'!D1:Z2"}, 2, 3, 1000, 26},
		{"exact fit", "sessoes", nil, 3, 5, 3, 5},
		{"grid smaller than data", "sessoes", nil, 10, 5, 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leftoverRanges(tt.table, tt.height, tt.width, tt.rows, tt.cols))
		})
	}
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
	assert.Equal(t, "AZ", columnName(52))
	assert.Equal(t, "ZZ", columnName(702))
	assert.Equal(t, "AAA", columnName(703))
}

func TestPadGrid(t *testing.T) {
	got := padGrid([][]string{{"conta", "jan", "fev"}, {"Receita"}, {"Impostos", "1", "2"}})
	assert.Equal(t, [][]string{{"conta", "jan", "fev"}, {"Receita", "", ""}, {"Impostos", "1", "2"}}, got)
}
