// Package ofx reads OFX/QFX bank statement exports.
package ofx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// ErrInvalidOFX is returned when a document cannot be parsed as OFX.
var ErrInvalidOFX = errors.New("invalid OFX document")

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tag at end of line with no closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Entry is one statement line. Amount keeps the sign the bank reported:
// debits are negative.
type Entry struct {
	Date        time.Time
	FITID       string
	CheckNum    string
	Description string
	Account     string
	Type        string
	Amount      decimal.Decimal
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Some banks emit a BOM or blank lines before the header.
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.TrimLeft(content, " \t\r\n")

	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX document and returns its entries in file
// order, bank statements first.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Entry, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOFX, err)
	}

	var entries []Entry
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		entries = append(entries, p.convert(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))...)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		entries = append(entries, p.convert(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))...)
	}

	p.logger.Info("Parsed OFX file",
		"entries", len(entries),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return entries, nil
}

func (p *Parser) convert(txns []ofxgo.Transaction, account string) []Entry {
	entries := make([]Entry, 0, len(txns))
	for _, tx := range txns {
		amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
		if err != nil {
			p.logger.Warn("Unreadable OFX amount",
				"fitid", string(tx.FiTID),
				"error", err)
			amount = decimal.Zero
		}

		entries = append(entries, Entry{
			Date:        tx.DtPosted.Time,
			FITID:       strings.TrimSpace(string(tx.FiTID)),
			CheckNum:    strings.TrimSpace(string(tx.CheckNum)),
			Description: describe(tx),
			Account:     account,
			Type:        fmt.Sprintf("%v", tx.TrnType),
			Amount:      amount,
		})
	}
	return entries
}

// describe picks the most informative text of a transaction. Brazilian
// banks often leave NAME generic and put the detail in MEMO.
func describe(tx ofxgo.Transaction) string {
	if tx.Payee != nil && strings.TrimSpace(string(tx.Payee.Name)) != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	memo := strings.TrimSpace(string(tx.Memo))
	if memo != "" && (name == "" || isGenericDescription(name)) {
		return memo
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PAYMENT", "PURCHASE",
		"DEBITO", "CREDITO", "PAGAMENTO", "COMPRA", "TRANSFERENCIA", "PIX":
		return true
	}
	return false
}
