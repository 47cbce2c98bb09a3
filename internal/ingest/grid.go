package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ReadXLSX returns the cell text of one worksheet. An empty sheet name
// selects the first sheet of the workbook.
func ReadXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, malformed("file is not a readable .xlsx workbook", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, common.NewUserError(
			fmt.Sprintf("worksheet %q not found (have %s)", sheet, strings.Join(f.GetSheetList(), ", ")), nil)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, malformed(fmt.Sprintf("worksheet %q could not be read", sheet), err)
	}
	return rows, nil
}

// ReadCSV reads a delimited text export. The delimiter is sniffed from the
// first non-empty line and input that is not valid UTF-8 is decoded as
// Latin-1, the encoding most point-of-sale systems export in.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
		if err != nil {
			return nil, malformed("file is neither UTF-8 nor Latin-1 text", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, malformed("file is not readable delimited text", err)
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of ; , and tab on the first
// non-empty line. Ties favour ';' because Brazilian exports use ',' as the
// decimal separator.
func sniffDelimiter(data []byte) rune {
	var line string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	best, bestCount := ';', strings.Count(line, ";")
	for _, c := range []rune{',', '\t'} {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
