package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
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
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>PAGAMENTO
<MEMO>PAG BOLETO ENERGIA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>125.00
<FITID>2024012001
<NAME>PIX RECEBIDO LOJA 02
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
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

const sampleCreditCardOFX = `OFXHEADER:100
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
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>BRL
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 3,
		},
		{
			name:          "valid credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 2,
		},
		{
			name:          "leading blank lines",
			ofxData:       "\n\n  " + sampleBankOFX,
			expectedCount: 3,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(nil)

			entries, err := parser.ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.ErrorIs(t, err, ErrInvalidOFX)
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.expectedCount)
		})
	}
}

func TestParseBankEntries(t *testing.T) {
	parser := NewParser(nil)

	entries, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	bill := entries[0]
	assert.Equal(t, "2024011501", bill.FITID)
	assert.Equal(t, "PAG BOLETO ENERGIA", bill.Description, "generic NAME falls back to MEMO")
	assert.True(t, decimal.RequireFromString("-25.50").Equal(bill.Amount), "debits stay negative")
	assert.Equal(t, "1234567890", bill.Account)
	assert.Equal(t, 2024, bill.Date.Year())
	assert.Equal(t, time.January, bill.Date.Month())
	assert.Equal(t, 15, bill.Date.Day())

	pix := entries[1]
	assert.Equal(t, "PIX RECEBIDO LOJA 02", pix.Description)
	assert.True(t, decimal.RequireFromString("125").Equal(pix.Amount))

	check := entries[2]
	assert.Equal(t, "2024012501", check.FITID)
	assert.Equal(t, "1234", check.CheckNum)
	assert.Equal(t, "CHECK #1234", check.Description)
	assert.Equal(t, "-500.00", check.Amount.StringFixed(2))
}

func TestParseCreditCardEntries(t *testing.T) {
	parser := NewParser(nil)

	entries, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "CC2024011001", entries[0].FITID)
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", entries[0].Description)
	assert.Equal(t, "-45.99", entries[0].Amount.StringFixed(2))
	assert.Equal(t, "4111111111111111", entries[0].Account)

	assert.Equal(t, "NETFLIX.COM", entries[1].Description)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		tx       ofxgo.Transaction
		expected string
	}{
		{
			name:     "payee wins",
			tx:       ofxgo.Transaction{Name: "PAGAMENTO", Payee: &ofxgo.Payee{Name: "CIA ENERGIA"}},
			expected: "CIA ENERGIA",
		},
		{
			name:     "generic name uses memo",
			tx:       ofxgo.Transaction{Name: "pix", Memo: "PIX ENVIADO FORNECEDOR"},
			expected: "PIX ENVIADO FORNECEDOR",
		},
		{
			name:     "specific name ignores memo",
			tx:       ofxgo.Transaction{Name: "TARIFA PACOTE", Memo: "REF 0324"},
			expected: "TARIFA PACOTE",
		},
		{
			name:     "empty name uses memo",
			tx:       ofxgo.Transaction{Memo: "  DEP DINHEIRO  "},
			expected: "DEP DINHEIRO",
		},
		{
			name:     "trim whitespace",
			tx:       ofxgo.Transaction{Name: "  NETFLIX.COM  "},
			expected: "NETFLIX.COM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, describe(tt.tx))
		})
	}
}

func TestPreprocessOFX(t *testing.T) {
	parser := NewParser(nil)

	out := parser.preprocessOFX("\ufeff\n<SEVERITY>Info</SEVERITY>\n<CODE\n")
	assert.Equal(t, "<SEVERITY>INFO</SEVERITY>\n<CODE>\n", out)
}
