// Package ingest turns card statement files into transactions and reads and
// writes the pending review report.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/cardledger/internal/model"
)

// Source parses one statement file.
type Source interface {
	Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error)
}

// Statement formats.
const (
	FormatCSV = "csv"
	FormatOFX = "ofx"
)

// DetectFormat guesses a statement format from a file name.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return FormatOFX
	default:
		return FormatCSV
	}
}

// NewSource returns the parser for format. minorDigits is the number of
// decimal places of the statement currency, used to scale OFX amounts.
func NewSource(format string, minorDigits int) (Source, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVParser(), nil
	case FormatOFX, "qfx":
		return NewOFXParser(minorDigits), nil
	default:
		return nil, fmt.Errorf("unsupported statement format %q (want csv or ofx)", format)
	}
}

// SplitByCard groups transactions by card, keeping statement order within a
// card. Cards are returned sorted.
func SplitByCard(txns []model.Transaction) ([]string, map[string][]model.Transaction) {
	byCard := make(map[string][]model.Transaction)
	for _, txn := range txns {
		card := strings.TrimSpace(txn.CardID)
		byCard[card] = append(byCard[card], txn)
	}

	cards := make([]string, 0, len(byCard))
	for card := range byCard {
		cards = append(cards, card)
	}
	sort.Strings(cards)
	return cards, byCard
}

// CardSuffix reduces a card number to its last four digits. Separators and
// masking characters are ignored.
func CardSuffix(number string) string {
	var digits []rune
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return string(digits)
}
