package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var _ service.TabularStore = (*Store)(nil)

// Store implements service.TabularStore on top of one Google spreadsheet.
// Every tab of the spreadsheet is a table whose first row is the header.
type Store struct {
	service       *sheets.Service
	logger        *slog.Logger
	spreadsheetID string
	config        Config
}

// NewStore creates a store bound to the configured spreadsheet, creating the
// spreadsheet when only a name is configured.
func NewStore(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	s := &Store{
		config:  config,
		service: srv,
		logger:  logger,
	}

	id, err := s.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return nil, err
	}
	s.spreadsheetID = id

	return s, nil
}

// Workbook returns a store bound to another spreadsheet using the same credentials.
func (s *Store) Workbook(spreadsheetID string) *Store {
	return &Store{
		service:       s.service,
		logger:        s.logger,
		config:        s.config,
		spreadsheetID: spreadsheetID,
	}
}

// SpreadsheetID returns the ID of the bound spreadsheet.
func (s *Store) SpreadsheetID() string {
	return s.spreadsheetID
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	switch config.AuthMethod() {
	case AuthServiceAccount:
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)

	case AuthOAuth2:
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})

	default:
		return nil, fmt.Errorf("%w: no Google credentials", common.ErrMissingConfig)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (s *Store) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if s.config.SpreadsheetID != "" {
		_, err := s.service.Spreadsheets.Get(s.config.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
		if err != nil {
			return "", common.StoreError("open spreadsheet", s.config.SpreadsheetID, err)
		}
		return s.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    s.config.SpreadsheetName,
			TimeZone: s.config.TimeZone,
		},
	}

	created, err := s.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", common.StoreError("create spreadsheet", s.config.SpreadsheetName, err)
	}

	s.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

// ReadAll implements service.TabularStore.
func (s *Store) ReadAll(ctx context.Context, table string) (*service.Table, error) {
	_, exists, err := s.sheetID(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %q: %w", table, common.ErrNotFound)
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, tableRange(table)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, common.StoreError("read", table, err)
	}

	out := toTable(table, resp.Values)
	s.logger.Debug("read table", "table", table, "rows", len(out.Rows))
	return out, nil
}

// Append implements service.TabularStore.
func (s *Store) Append(ctx context.Context, table string, rows [][]string) error {
	for _, b := range batches(rows, s.config.BatchSize) {
		valueRange := &sheets.ValueRange{Values: toValues(b.rows)}

		_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, tableRange(table), valueRange).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return common.StoreError("append", table, fmt.Errorf("batch starting at row %d: %w", b.start+1, err))
		}

		s.logger.Debug("appended batch", "table", table, "rows", len(b.rows))
	}

	return nil
}

// ClearAndWrite implements service.TabularStore. The new content is written
// over the old one first and only the cells left over below and to the right
// are cleared afterwards, so readers never see an empty table and a failed
// write leaves the previous rows in place.
func (s *Store) ClearAndWrite(ctx context.Context, table string, header []string, rows [][]string) error {
	if err := s.CreateIfMissing(ctx, table, header); err != nil {
		return err
	}

	values := make([][]string, 0, len(rows)+1)
	values = append(values, header)
	values = append(values, rows...)
	values = padGrid(values)

	if err := s.writeData(ctx, table, values); err != nil {
		return err
	}

	props, err := s.properties(ctx, table)
	if err != nil {
		return err
	}
	if props == nil || props.GridProperties == nil {
		return nil
	}

	ranges := leftoverRanges(table, len(values), gridWidth(values),
		int(props.GridProperties.RowCount), int(props.GridProperties.ColumnCount))
	if len(ranges) == 0 {
		return nil
	}

	_, err = s.service.Spreadsheets.Values.BatchClear(s.spreadsheetID, &sheets.BatchClearValuesRequest{Ranges: ranges}).
		Context(ctx).
		Do()
	if err != nil {
		return common.StoreError("clear", table, err)
	}
	return nil
}

// CreateIfMissing implements service.TabularStore.
func (s *Store) CreateIfMissing(ctx context.Context, table string, header []string) error {
	_, exists, err := s.sheetID(ctx, table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	resp, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: table},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return common.StoreError("create table", table, err)
	}

	if err := s.writeData(ctx, table, [][]string{header}); err != nil {
		return err
	}

	s.logger.Info("created table", "table", table, "columns", len(header))

	if s.config.EnableFormatting && len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID := resp.Replies[0].AddSheet.Properties.SheetId
		_, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: headerFormatting(sheetID, len(header)),
		}).Context(ctx).Do()
		if err != nil {
			// Formatting is cosmetic; the table is usable without it.
			s.logger.Warn("failed to format header", "table", table, "error", err)
		}
	}

	return nil
}

// sheetID looks up the tab backing table.
func (s *Store) sheetID(ctx context.Context, table string) (int64, bool, error) {
	props, err := s.properties(ctx, table)
	if err != nil || props == nil {
		return 0, false, err
	}
	return props.SheetId, true, nil
}

// properties returns the properties of the tab backing table, or nil when
// there is no such tab.
func (s *Store) properties(ctx context.Context, table string) (*sheets.SheetProperties, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, common.StoreError("describe", table, err)
	}

	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == table {
			return sh.Properties, nil
		}
	}
	return nil, nil
}

// writeData writes values starting at A1 in batches to avoid API limits.
func (s *Store) writeData(ctx context.Context, table string, values [][]string) error {
	for _, b := range batches(values, s.config.BatchSize) {
		valueRange := &sheets.ValueRange{Values: toValues(b.rows)}

		rangeStr := fmt.Sprintf("%s!A%d", tableRange(table), b.start+1)
		_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeStr, valueRange).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return common.StoreError("write", table, fmt.Errorf("batch starting at row %d: %w", b.start+1, err))
		}

		s.logger.Debug("wrote batch", "table", table, "start_row", b.start+1, "rows", len(b.rows))
	}

	return nil
}

// headerFormatting bolds and freezes the header row.
func headerFormatting(sheetID int64, columns int) []*sheets.Request {
	return []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
							Alpha: 1.0,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat,userEnteredFormat.backgroundColor",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}
}

// tableRange quotes a tab title for use in A1 notation.
func tableRange(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

// leftoverRanges returns the A1 ranges of a rows x cols grid lying outside
// the height x width block that was just written.
func leftoverRanges(table string, height, width, rows, cols int) []string {
	var out []string
	if rows > height && cols > 0 {
		out = append(out, fmt.Sprintf("%s!A%d:%s%d", tableRange(table), height+1, columnName(cols), rows))
	}
	if cols > width && height > 0 {
		out = append(out, fmt.Sprintf("%s!%s1:%s%d", tableRange(table), columnName(width+1), columnName(cols), height))
	}
	return out
}

// columnName converts a 1-based column number to its letters (1 = A, 27 = AA).
func columnName(n int) string {
	var name []byte
	for n > 0 {
		n--
		name = append([]byte{byte('A' + n%26)}, name...)
		n /= 26
	}
	return string(name)
}

// padGrid pads short rows with empty cells so that overwriting a row also
// blanks whatever the previous content had past its end.
func padGrid(values [][]string) [][]string {
	width := gridWidth(values)
	out := make([][]string, len(values))
	for i, row := range values {
		if len(row) == width {
			out[i] = row
			continue
		}
		padded := make([]string, width)
		copy(padded, row)
		out[i] = padded
	}
	return out
}

func gridWidth(values [][]string) int {
	width := 0
	for _, row := range values {
		width = max(width, len(row))
	}
	return width
}

// batch is a contiguous slice of rows starting at offset start.
type batch struct {
	rows  [][]string
	start int
}

// batches splits rows into ordered chunks of at most size rows.
func batches(rows [][]string, size int) []batch {
	if size <= 0 {
		size = max(len(rows), 1)
	}
	out := make([]batch, 0, (len(rows)+size-1)/size)
	for i := 0; i < len(rows); i += size {
		end := min(i+size, len(rows))
		out = append(out, batch{start: i, rows: rows[i:end]})
	}
	return out
}

func toValues(rows [][]string) [][]any {
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}
	return values
}

// toTable converts an API value grid into a Table. The API omits trailing
// empty cells, so data rows are padded to the header width; fully blank rows
// are dropped.
func toTable(name string, values [][]any) *service.Table {
	out := &service.Table{Name: name}
	if len(values) == 0 {
		return out
	}

	out.Header = make([]string, len(values[0]))
	for i, v := range values[0] {
		out.Header[i] = strings.TrimSpace(cellString(v))
	}

	for _, raw := range values[1:] {
		width := len(out.Header)
		if len(raw) > width {
			width = len(raw)
		}
		row := make([]string, width)
		blank := true
		for i, v := range raw {
			row[i] = cellString(v)
			if strings.TrimSpace(row[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
