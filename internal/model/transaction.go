package model

import (
	"strings"
	"time"
)

// DayLayout is the calendar-day format used in ledger keys.
const DayLayout = "2006-01-02"

// Transaction represents a single card charge from a statement.
type Transaction struct {
	Date            time.Time
	RawMerchantName string
	CardID          string
	IndustryCode    string // Merchant industry text from the statement, may be empty
	Amount          int64  // Smallest currency unit
}

// NormalizeMerchant trims surrounding whitespace. Case and punctuation are preserved.
func NormalizeMerchant(name string) string {
	return strings.TrimSpace(name)
}

// MerchantKey returns the normalized merchant name used for pattern lookups.
func (t Transaction) MerchantKey() string {
	return NormalizeMerchant(t.RawMerchantName)
}

// Normalized returns a copy of the transaction with its merchant name trimmed.
func (t Transaction) Normalized() Transaction {
	t.RawMerchantName = t.MerchantKey()
	t.CardID = strings.TrimSpace(t.CardID)
	t.IndustryCode = strings.TrimSpace(t.IndustryCode)
	return t
}

// LedgerKey returns the duplicate-detection identity of the transaction.
func (t Transaction) LedgerKey() LedgerKey {
	return NewLedgerKey(t.CardID, t.Date, t.RawMerchantName, t.Amount)
}

// LedgerKey identifies a physical charge. Two transactions with equal keys are the same charge.
type LedgerKey struct {
	CardID   string
	Day      string
	Merchant string
	Amount   int64
}

// NewLedgerKey builds a key, truncating date to its calendar day and trimming the merchant.
func NewLedgerKey(cardID string, date time.Time, merchant string, amount int64) LedgerKey {
	return LedgerKey{
		CardID:   cardID,
		Day:      date.Format(DayLayout),
		Merchant: NormalizeMerchant(merchant),
		Amount:   amount,
	}
}
