package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
)

// Statement column names as exported by card issuers, with English aliases.
var statementColumns = map[string][]string{
	"card":     {"카드번호", "카드", "card", "card_number"},
	"date":     {"승인일자", "이용일자", "결제일자", "date"},
	"merchant": {"가맹점명", "merchant", "merchant_name"},
	"amount":   {"거래금액(원화)", "이용금액", "금액", "amount"},
	"industry": {"가맹점업종", "업종", "industry"},
}

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"20060102",
}

// CSVParser reads card statements exported as CSV.
type CSVParser struct{}

// NewCSVParser creates a new CSV statement parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads every usable row. Rows without a card, date, merchant or a
// non-zero amount are skipped with a warning.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, common.ErrNoTransactions
		}
		return nil, fmt.Errorf("failed to read statement header: %w", err)
	}

	cols := indexColumns(header, statementColumns)
	for _, required := range []string{"card", "date", "merchant", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("statement is missing the %s column", required)
		}
	}

	var transactions []model.Transaction
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("Skipping unreadable statement row", "error", err)
			skipped++
			continue
		}
		line, _ := reader.FieldPos(0)
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		txn, err := parseStatementRow(record, cols)
		if err != nil {
			slog.Warn("Skipping statement row", "line", line, "reason", err)
			skipped++
			continue
		}
		transactions = append(transactions, txn)
	}

	slog.Info("Parsed CSV statement",
		"total_transactions", len(transactions),
		"skipped", skipped)

	if len(transactions) == 0 {
		return nil, common.ErrNoTransactions
	}
	return transactions, nil
}

func parseStatementRow(record []string, cols map[string]int) (model.Transaction, error) {
	card := CardSuffix(field(record, cols, "card"))
	if card == "" {
		return model.Transaction{}, errors.New("missing card number")
	}

	date, err := ParseDate(field(record, cols, "date"))
	if err != nil {
		return model.Transaction{}, err
	}

	merchant := model.NormalizeMerchant(field(record, cols, "merchant"))
	if merchant == "" {
		return model.Transaction{}, errors.New("missing merchant")
	}

	amount, err := ParseAmount(field(record, cols, "amount"))
	if err != nil {
		return model.Transaction{}, err
	}
	if amount == 0 {
		return model.Transaction{}, errors.New("zero amount")
	}

	return model.Transaction{
		Date:            date,
		RawMerchantName: merchant,
		CardID:          card,
		IndustryCode:    strings.TrimSpace(field(record, cols, "industry")),
		Amount:          amount,
	}, nil
}

// ParseDate accepts the date layouts used by Korean card issuers. Anything
// after the date (a time of day) is ignored.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > 10 {
		value = strings.TrimSpace(value[:10])
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	// Compact dates are eight characters; a longer prefix may have swallowed a time.
	if len(value) >= 8 {
		if t, err := time.ParseInLocation("20060102", value[:8], time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ParseAmount parses a won amount such as "8,400" or "8400.0". Fractions are
// truncated.
func ParseAmount(value string) (int64, error) {
	clean := strings.NewReplacer(",", "", " ", "", "원", "").Replace(strings.TrimSpace(value))
	if clean == "" {
		return 0, errors.New("missing amount")
	}
	if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	return int64(f), nil
}

func indexColumns(header []string, aliases map[string][]string) map[string]int {
	cols := make(map[string]int)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for key, names := range aliases {
			if _, seen := cols[key]; seen {
				continue
			}
			for _, alias := range names {
				if strings.EqualFold(name, alias) {
					cols[key] = i
					break
				}
			}
		}
	}
	return cols
}

func field(record []string, cols map[string]int, key string) string {
	i, ok := cols[key]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
