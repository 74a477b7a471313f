// Package learning turns reviewed transactions into exact patterns.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
)

// PatternWriter is the write side of the pattern store used for learning.
type PatternWriter interface {
	FindOrCreate(ctx context.Context, merchantKey, usageLabel string, scope model.Scope, createdBy string) (model.Pattern, model.UpsertOutcome, error)
}

// Feed records reviewed merchant/usage pairs as exact patterns.
type Feed struct {
	store     PatternWriter
	createdBy string
}

// NewFeed creates a learning feed writing to store.
func NewFeed(store PatternWriter) *Feed {
	return &Feed{store: store, createdBy: model.CreatedByManual}
}

// Learn creates or updates the exact pattern for merchantKey in scope.
func (f *Feed) Learn(ctx context.Context, merchantKey, usageLabel string, scope model.Scope) (model.Pattern, error) {
	p, _, err := f.learn(ctx, merchantKey, usageLabel, scope)
	return p, err
}

func (f *Feed) learn(ctx context.Context, merchantKey, usageLabel string, scope model.Scope) (model.Pattern, model.UpsertOutcome, error) {
	merchantKey = model.NormalizeMerchant(merchantKey)
	usageLabel = strings.TrimSpace(usageLabel)

	if merchantKey == "" {
		return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("%w: missing merchant", common.ErrMalformedReviewRow)
	}
	if usageLabel == "" {
		return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("%w: missing usage label for %q", common.ErrMalformedReviewRow, merchantKey)
	}

	p, outcome, err := f.store.FindOrCreate(ctx, merchantKey, usageLabel, scope, f.createdBy)
	if err != nil {
		return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("failed to learn pattern for %q: %w", merchantKey, err)
	}
	return p, outcome, nil
}

// LearnBatch learns every reviewed row that carries a usage label. Rows
// missing a merchant or usage are skipped and counted. With perCard set the
// patterns are scoped to each row's card instead of being global.
//
// A store failure stops the batch; the report covers the rows processed so far.
func (f *Feed) LearnBatch(ctx context.Context, rows []model.ReviewRow, perCard bool) (model.LearnReport, error) {
	var report model.LearnReport

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		scope := model.GlobalScope()
		if perCard {
			cardID := strings.TrimSpace(row.CardID)
			if cardID == "" {
				slog.Debug("Skipping review row without card", "line", row.Line)
				report.Skipped++
				continue
			}
			scope = model.CardScope(cardID)
		}

		p, outcome, err := f.learn(ctx, row.MerchantName, row.UsageLabel, scope)
		if err != nil {
			if common.IsMalformedRow(err) {
				slog.Debug("Skipping review row", "line", row.Line, "reason", err)
				report.Skipped++
				continue
			}
			return report, fmt.Errorf("review row %d: %w", row.Line, err)
		}

		switch outcome {
		case model.OutcomeCreated:
			report.Created++
		case model.OutcomeUpdated:
			report.Updated++
		default:
			report.Unchanged++
		}
		report.Applied = append(report.Applied, model.LearnedPair{
			MerchantKey: p.MerchantKey,
			UsageLabel:  p.UsageLabel,
			Scope:       p.Scope,
		})
	}

	slog.Info("Learned patterns from review",
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped)

	return report, nil
}
