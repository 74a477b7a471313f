package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Veraticus/cardledger/internal/model"
)

var reviewHeader = []string{"date", "card", "merchant", "amount", "industry", "usage"}

var reviewColumns = map[string][]string{
	"date":     {"date", "승인일자", "이용일자"},
	"card":     {"card", "카드번호", "카드"},
	"merchant": {"merchant", "가맹점명"},
	"amount":   {"amount", "거래금액(원화)", "금액"},
	"industry": {"industry", "가맹점업종", "업종"},
	"usage":    {"usage", "최종_사용용도", "사용용도", "usage_label"},
}

// WriteReview writes transactions awaiting review. The usage column is left
// blank for the reviewer to fill in.
func WriteReview(w io.Writer, txns []model.Transaction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(reviewHeader); err != nil {
		return fmt.Errorf("failed to write review header: %w", err)
	}

	for _, txn := range txns {
		record := []string{
			txn.Date.Format(model.DayLayout),
			txn.CardID,
			txn.RawMerchantName,
			strconv.FormatInt(txn.Amount, 10),
			txn.IndustryCode,
			"",
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write review row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadReview reads a reviewed report. Rows are returned as found, including
// rows with a blank usage; the learning feed decides what to skip. Line
// numbers count the header as line 1.
func ReadReview(r io.Reader) ([]model.ReviewRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read review header: %w", err)
	}

	cols := indexColumns(header, reviewColumns)
	for _, required := range []string{"merchant", "usage"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("review file is missing the %s column", required)
		}
	}

	var rows []model.ReviewRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read review file: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		rows = append(rows, parseReviewRow(record, cols, line))
	}
	return rows, nil
}

func parseReviewRow(record []string, cols map[string]int, line int) model.ReviewRow {
	row := model.ReviewRow{
		Line:         line,
		CardID:       reviewCard(field(record, cols, "card")),
		MerchantName: model.NormalizeMerchant(field(record, cols, "merchant")),
		IndustryCode: strings.TrimSpace(field(record, cols, "industry")),
		UsageLabel:   strings.TrimSpace(field(record, cols, "usage")),
	}

	if value := strings.TrimSpace(field(record, cols, "date")); value != "" {
		date, err := ParseDate(value)
		if err != nil {
			slog.Debug("Ignoring review date", "line", line, "error", err)
		} else {
			row.Date = date
		}
	}
	if value := strings.TrimSpace(field(record, cols, "amount")); value != "" {
		amount, err := ParseAmount(value)
		if err != nil {
			slog.Debug("Ignoring review amount", "line", line, "error", err)
		} else {
			row.Amount = amount
		}
	}
	return row
}

// reviewCard accepts both full card numbers and the stored suffix.
func reviewCard(value string) string {
	value = strings.TrimSpace(value)
	if suffix := CardSuffix(value); suffix != "" {
		return suffix
	}
	return value
}
