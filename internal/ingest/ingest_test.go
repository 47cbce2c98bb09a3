package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
)

const statementOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>341
<ACCTID>123456
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>20240115001
<NAME>TARIFA PACOTE
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func schemaFor(t *testing.T, kind model.ReportKind) *reconcile.Schema {
	t.Helper()
	catalog, err := reconcile.NewCatalog(nil)
	require.NoError(t, err)
	s, ok := catalog.Schema(kind)
	require.True(t, ok)
	return s
}

func workbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Histórico", "historico"},
		{"  Valor R$ ", "valor r"},
		{"Forma_de  Pagamento", "forma de pagamento"},
		{"DATA DO MOVIMENTO", "data do movimento"},
		{"%", "%"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeader(tt.in))
		})
	}
}

func TestMapHeader_SkipsTitleBlock(t *testing.T) {
	schema := schemaFor(t, model.KindSangria)
	grid := [][]string{
		{"Relatório de Sangrias"},
		{},
		{"Data", "Hora", "Operador", "Nr Documento", "Valor", "Observação", "Conferido"},
		{"01/02/2024", "10:30", "Ana", "123", "1.234,56", "Sangria caixa 3", "sim"},
		{"", "", "", "", "", "", ""},
		{"01/02/2024", "11:00", "Beto", "124", "50,00"},
	}

	m, err := MapHeader(schema, grid)
	require.NoError(t, err)

	assert.Equal(t, 2, m.HeaderRow)
	assert.Equal(t, []int{0, 1, -1, 2, 3, 4, 5, -1}, m.Columns)
	assert.Equal(t, []string{"loja"}, m.Missing, "the key column is never expected in files")

	rows := m.Rows(grid)
	require.Len(t, rows, 2)
	assert.Equal(t, model.Row{"01/02/2024", "10:30", nil, "Ana", "123", "1.234,56", "Sangria caixa 3", nil}, rows[0])
	assert.Equal(t, model.Row{"01/02/2024", "11:00", nil, "Beto", "124", "50,00", nil, nil}, rows[1], "short lines leave trailing cells nil")
}

func TestMapHeader_ExactNameBeatsAlias(t *testing.T) {
	schema := schemaFor(t, model.KindPaymentMethods)
	grid := [][]string{
		{"Data", "Total", "Valor", "Finalizadora"},
	}

	m, err := MapHeader(schema, grid)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Columns[schema.Index("valor")])
	assert.Equal(t, 3, m.Columns[schema.Index("forma_pagamento")])
}

func TestMapHeader_RejectsUnknownLayout(t *testing.T) {
	schema := schemaFor(t, model.KindBankStatement)
	grid := [][]string{
		{"foo", "bar"},
		{"1", "2"},
	}

	_, err := MapHeader(schema, grid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedLayout))

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Contains(t, userErr.UserMessage, "bank_statement")
}

func TestMapHeader_EmptyGrid(t *testing.T) {
	_, err := MapHeader(schemaFor(t, model.KindDailySales), nil)
	assert.ErrorIs(t, err, ErrUnrecognizedLayout)
}

func TestReadCSV_Latin1Semicolon(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().String("Data;Histórico;Valor\n01/02/2024;Depósito;1.234,56\n")
	require.NoError(t, err)

	rows, err := ReadCSV(strings.NewReader(raw))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Data", "Histórico", "Valor"}, rows[0])
	assert.Equal(t, "Depósito", rows[1][1])
	assert.Equal(t, "1.234,56", rows[1][2])
}

func TestReadCSV_Delimiters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"comma", "data,valor\n2024-02-01,10.00\n", []string{"2024-02-01", "10.00"}},
		{"tab", "data\tvalor\n2024-02-01\t10,00\n", []string{"2024-02-01", "10,00"}},
		{"semicolon with decimal commas", "data;valor\n2024-02-01;\"10,00\"\n", []string{"2024-02-01", "10,00"}},
		{"bom and leading blank line", "\xef\xbb\xbf\ndata;valor\n2024-02-01;5\n", []string{"2024-02-01", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, tt.want, rows[1])
		})
	}
}

func TestLoader_XLSX(t *testing.T) {
	schema := schemaFor(t, model.KindBankStatement)
	buf := workbook(t, "Sheet1", [][]any{
		{"Extrato conta corrente"},
		{"Data", "Documento", "Histórico", "Valor", "Saldo"},
		{"2024-02-01", "0001", "PIX RECEBIDO", "150,00", "1.150,00"},
		{"2024-02-02", "0002", "TARIFA", "-12,90", "1.137,10"},
	})

	batch, err := NewLoader().Load(context.Background(), schema, "uploads/extrato.XLSX", buf)
	require.NoError(t, err)

	assert.Equal(t, "extrato.XLSX", batch.Source)
	assert.Equal(t, FormatXLSX, batch.Format)
	assert.Equal(t, 1, batch.Mapping.HeaderRow)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, model.Row{"2024-02-02", "0002", "TARIFA", "-12,90", "1.137,10", nil}, batch.Rows[1])
}

func TestLoader_XLSXNamedSheet(t *testing.T) {
	schema := schemaFor(t, model.KindDailySales)
	buf := workbook(t, "Vendas", [][]any{
		{"Data", "Loja", "Cupons", "Valor Bruto", "Descontos", "Valor Liquido"},
		{"2024-02-01", "01", "320", "10.500,00", "500,00", "10.000,00"},
	})

	batch, err := NewLoader(WithSheet("Vendas")).Load(context.Background(), schema, "vendas.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "10.000,00", batch.Rows[0][schema.Index("valor_liquido")])

	_, err = NewLoader(WithSheet("Nope")).Load(context.Background(), schema, "vendas.xlsx", bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `worksheet "Nope" not found`)
}

func TestLoader_CSV(t *testing.T) {
	schema := schemaFor(t, model.KindPaymentMethods)
	input := "Data;Loja;Forma de Pagamento;Qtde;Valor\n01/02/2024;01;Cartão Débito;12;1.020,00\n"

	batch, err := NewLoader().Load(context.Background(), schema, "formas.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, batch.Format)
	assert.Empty(t, batch.Mapping.Missing)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, model.Row{"01/02/2024", "01", "Cartão Débito", "12", "1.020,00"}, batch.Rows[0])
}

func TestLoader_OFX(t *testing.T) {
	schema := schemaFor(t, model.KindBankStatement)

	batch, err := NewLoader().Load(context.Background(), schema, "extrato.ofx", strings.NewReader(statementOFX))
	require.NoError(t, err)

	assert.Equal(t, FormatOFX, batch.Format)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, model.Row{"2024-01-15", "20240115001", "TARIFA PACOTE", "-25.50", nil, nil}, batch.Rows[0])
	assert.Equal(t, []string{"saldo"}, batch.Mapping.Missing)
}

func TestLoader_OFXOnlyForBankStatements(t *testing.T) {
	schema := schemaFor(t, model.KindSangria)

	_, err := NewLoader().Load(context.Background(), schema, "extrato.qfx", strings.NewReader(statementOFX))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoader_MalformedFiles(t *testing.T) {
	tests := []struct {
		kind     model.ReportKind
		filename string
		content  string
	}{
		{model.KindSangria, "caixa.xlsx", "not a zip"},
		{model.KindBankStatement, "extrato.ofx", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			_, err := NewLoader().Load(context.Background(), schemaFor(t, tt.kind), tt.filename, strings.NewReader(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFile)

			var userErr *common.UserError
			assert.True(t, errors.As(err, &userErr), "malformed files are reported to the user")
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"a.xlsx", FormatXLSX, false},
		{"a.XLSM", FormatXLSX, false},
		{"a.csv", FormatCSV, false},
		{"a.txt", FormatCSV, false},
		{"a.ofx", FormatOFX, false},
		{"a.QFX", FormatOFX, false},
		{"a.pdf", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := FormatOf(tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
