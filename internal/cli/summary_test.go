package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRenderBatchSummary(t *testing.T) {
	result := &model.BatchResult{
		CardID:     "6902",
		Accepted:   make([]model.Transaction, 5),
		Results:    make([]model.MatchResult, 5),
		Duplicates: 2,
		Unmatched:  1,
		Committed:  5,
	}

	out := RenderBatchSummary(result, "/tmp/pending-6902.csv")
	assert.Contains(t, out, "Batch Classified")
	assert.Contains(t, out, "Matched: 4")
	assert.Contains(t, out, "Duplicates skipped: 2")
	assert.Contains(t, out, "Committed: 5")
	assert.Contains(t, out, "/tmp/pending-6902.csv")

	result.DryRun = true
	out = RenderBatchSummary(result, "")
	assert.Contains(t, out, "Batch Preview")
	assert.NotContains(t, out, "Committed")
}

func TestRenderTableAlignsWideText(t *testing.T) {
	out := RenderTable([]string{"Merchant", "Usage"}, [][]string{
		{"맥도날드", "복리후생비"},
		{"GS25", "소모품비"},
		{"short"},
	})
	assert.Contains(t, out, "맥도날드")
	assert.Contains(t, out, "소모품비")
	assert.Contains(t, out, "short")
}

func TestRenderPatternOutputs(t *testing.T) {
	p := model.Pattern{
		ID:          7,
		Kind:        model.KindExact,
		MerchantKey: "한국도로공사",
		UsageLabel:  "차량유지비",
		Scope:       model.CardScope("6902"),
		Priority:    10,
		IsActive:    true,
		CreatedBy:   model.CreatedByManual,
		CreatedAt:   time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}

	assert.Contains(t, RenderPatternTable([]model.Pattern{p}), "card:6902")
	detail := RenderPatternDetail(p)
	assert.Contains(t, detail, "Pattern #7")
	assert.Contains(t, detail, "2024-01-10 09:00")

	stats := RenderPatternStats(model.PatternStats{
		ByKind:  map[model.PatternKind]int{model.KindExact: 3, model.KindRegex: 1},
		ByScope: map[string]int{"common": 3, "card:6902": 1},
		Total:   4,
	})
	assert.Contains(t, stats, "Total: 4")
	assert.Contains(t, stats, "contains: 0")
	assert.Contains(t, stats, "card:6902: 1")
}

func TestRenderSuggestions(t *testing.T) {
	assert.Contains(t, RenderSuggestions("쿠팡", nil), "No similar patterns")

	out := RenderSuggestions("쿠팡", []model.ScoredPattern{
		{Pattern: model.Pattern{MerchantKey: "쿠팡(주)", UsageLabel: "소모품비"}, Score: 80},
	})
	assert.Contains(t, out, "80")
	assert.Contains(t, out, "쿠팡(주)")
}

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&buf, "Matching")

	reporter.Report(0, 0)
	assert.Nil(t, reporter.bar)

	reporter.Report(1, 3)
	reporter.Report(3, 3)
	reporter.Finish()
	reporter.Finish()

	assert.Contains(t, buf.String(), "Matching")
}
