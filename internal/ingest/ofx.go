package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXParser reads card statements downloaded as OFX or QFX.
type OFXParser struct {
	scale *big.Int
}

// NewOFXParser creates an OFX parser. Amounts are multiplied by
// 10^minorDigits so they land in the smallest currency unit.
func NewOFXParser(minorDigits int) *OFXParser {
	if minorDigits < 0 {
		minorDigits = 0
	}
	return &OFXParser{
		scale: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(minorDigits)), nil),
	}
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be INFO, WARN or ERROR
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML files sometimes drop the closing bracket of a bare tag
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in the file.
func (p *OFXParser) Parse(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			transactions = append(transactions,
				p.convertList(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	// Check cards post to bank statements
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			transactions = append(transactions,
				p.convertList(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))...)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	if len(transactions) == 0 {
		return nil, common.ErrNoTransactions
	}
	return transactions, nil
}

func (p *OFXParser) convertList(list []ofxgo.Transaction, accountID string) []model.Transaction {
	card := CardSuffix(accountID)
	transactions := make([]model.Transaction, 0, len(list))
	for _, ofxTx := range list {
		tx, err := p.convertTransaction(ofxTx, card)
		if err != nil {
			slog.Warn("Skipping OFX transaction",
				"fitid", string(ofxTx.FiTID),
				"reason", err)
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions
}

// convertTransaction converts an OFX transaction to a card charge. OFX posts
// charges as negative amounts, so the sign is flipped: charges are positive
// and refunds or payment credits are negative, matching statement CSVs.
func (p *OFXParser) convertTransaction(ofxTx ofxgo.Transaction, card string) (model.Transaction, error) {
	merchant := extractMerchantName(ofxTx)
	if merchant == "" {
		return model.Transaction{}, fmt.Errorf("missing merchant")
	}

	amount, err := p.minorUnits(&ofxTx.TrnAmt.Rat)
	if err != nil {
		return model.Transaction{}, err
	}
	if amount == 0 {
		return model.Transaction{}, fmt.Errorf("zero amount")
	}

	tx := model.Transaction{
		Date:            ofxTx.DtPosted.Time,
		RawMerchantName: merchant,
		CardID:          card,
		Amount:          amount,
	}
	if ofxTx.SIC != 0 {
		tx.IndustryCode = strconv.Itoa(int(ofxTx.SIC))
	}
	return tx, nil
}

func (p *OFXParser) minorUnits(amt *big.Rat) (int64, error) {
	scaled := new(big.Rat).Neg(amt)
	scaled.Mul(scaled, new(big.Rat).SetInt(p.scale))

	units := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !units.IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", amt.FloatString(2))
	}
	return units.Int64(), nil
}

// extractMerchantName prefers PAYEE, then NAME, then MEMO when NAME is generic.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return model.NormalizeMerchant(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && (strings.TrimSpace(name) == "" || isGenericDescription(name)) {
		name = string(tx.Memo)
	}
	return model.NormalizeMerchant(name)
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
