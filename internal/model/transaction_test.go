package model

import (
	"testing"
	"time"
)

func TestLedgerKeyEquality(t *testing.T) {
	base := Transaction{
		Date:            time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
		RawMerchantName: "맥도날드",
		CardID:          "6902",
		Amount:          8400,
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		equal  bool
	}{
		{name: "identical", mutate: func(*Transaction) {}, equal: true},
		{name: "later the same day", mutate: func(tx *Transaction) { tx.Date = tx.Date.Add(10 * time.Hour) }, equal: true},
		{name: "surrounding whitespace", mutate: func(tx *Transaction) { tx.RawMerchantName = "  맥도날드 " }, equal: true},
		{name: "next day", mutate: func(tx *Transaction) { tx.Date = tx.Date.AddDate(0, 0, 1) }, equal: false},
		{name: "one won more", mutate: func(tx *Transaction) { tx.Amount = 8401 }, equal: false},
		{name: "other card", mutate: func(tx *Transaction) { tx.CardID = "1234" }, equal: false},
		{name: "case differs", mutate: func(tx *Transaction) { tx.RawMerchantName = "MCDONALDS" }, equal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			if got := base.LedgerKey() == other.LedgerKey(); got != tt.equal {
				t.Errorf("LedgerKey equality = %v, want %v (%+v vs %+v)", got, tt.equal, base.LedgerKey(), other.LedgerKey())
			}
		})
	}
}

func TestTransactionNormalized(t *testing.T) {
	tx := Transaction{RawMerchantName: "  Starbucks #12 ", CardID: " 6902 ", IndustryCode: " 커피 "}
	n := tx.Normalized()

	if n.RawMerchantName != "Starbucks #12" {
		t.Errorf("merchant = %q", n.RawMerchantName)
	}
	if n.CardID != "6902" || n.IndustryCode != "커피" {
		t.Errorf("card/industry not trimmed: %+v", n)
	}
	if tx.RawMerchantName != "  Starbucks #12 " {
		t.Error("Normalized must not modify the receiver")
	}
}
