// Package engine classifies card transaction batches against the pattern store
// and commits them to the card ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/dedup"
	"github.com/Veraticus/cardledger/internal/learning"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/pattern"
	"github.com/Veraticus/cardledger/internal/service"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Engine orchestrates dedup, matching and ledger appends for card batches.
type Engine struct {
	patterns PatternStore
	ledger   Ledger
	feed     *learning.Feed
	progress func(done, total int)
	workers  int
}

// Config holds configuration options for the engine.
type Config struct {
	// Progress, when set, is called after each transaction is matched.
	Progress func(done, total int)
	Workers  int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
	}
}

// New creates an engine with the default configuration.
func New(patterns PatternStore, ledger Ledger) *Engine {
	return NewWithConfig(patterns, ledger, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(patterns PatternStore, ledger Ledger, config Config) *Engine {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		patterns: patterns,
		ledger:   ledger,
		feed:     learning.NewFeed(patterns),
		progress: config.Progress,
		workers:  workers,
	}
}

// ClassifyBatch dedups txns against cardID's ledger, matches the survivors
// against snap and appends them. Duplicates, both against history and within
// the batch, are counted and skipped.
//
// If the ledger cannot be read the batch fails with common.ErrLedgerUnavailable
// before anything is written. If an append fails the rows before it stay
// committed and a *BatchError is returned alongside the partial result.
func (e *Engine) ClassifyBatch(ctx context.Context, snap *pattern.Snapshot, cardID string, txns []model.Transaction) (*model.BatchResult, error) {
	return e.classify(ctx, snap, cardID, txns, true)
}

// Preview runs dedup and matching without writing to the ledger or bumping
// pattern use counts.
func (e *Engine) Preview(ctx context.Context, snap *pattern.Snapshot, cardID string, txns []model.Transaction) (*model.BatchResult, error) {
	return e.classify(ctx, snap, cardID, txns, false)
}

func (e *Engine) classify(ctx context.Context, snap *pattern.Snapshot, cardID string, txns []model.Transaction, commit bool) (*model.BatchResult, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, fmt.Errorf("%w: batch has no card", common.ErrCardMismatch)
	}

	normalized := make([]model.Transaction, len(txns))
	for i, txn := range txns {
		txn = txn.Normalized()
		if txn.CardID == "" {
			txn.CardID = cardID
		}
		if txn.CardID != cardID {
			return nil, fmt.Errorf("%w: row %d is for card %s, batch is for card %s",
				common.ErrCardMismatch, i, txn.CardID, cardID)
		}
		normalized[i] = txn
	}

	result := &model.BatchResult{
		BatchID:         uuid.NewString(),
		CardID:          cardID,
		SnapshotVersion: snap.Version(),
		DryRun:          !commit,
	}

	slog.Info("Starting batch classification",
		"batch_id", result.BatchID,
		"card", cardID,
		"transactions", len(normalized),
		"snapshot_version", snap.Version(),
		"dry_run", !commit)

	var counter pattern.UseCounter
	if commit {
		counter = e.patterns
	}
	matcher := pattern.NewMatcher(snap, counter)

	err := e.ledger.WithLedger(ctx, cardID, func(session service.LedgerSession) error {
		keys, err := session.Keys(ctx)
		if err != nil {
			return fmt.Errorf("%w: card %s: %w", common.ErrLedgerUnavailable, cardID, err)
		}

		rows := e.dedup(dedup.NewIndex(keys), normalized, result)

		results, err := e.matchAll(ctx, matcher, result.Accepted)
		if err != nil {
			return err
		}
		result.Results = results
		for _, r := range results {
			if !r.IsMatched() {
				result.Unmatched++
			}
		}

		if !commit {
			return nil
		}
		return e.appendAll(ctx, session, result, rows)
	})

	if err != nil {
		var batchErr *BatchError
		if errors.As(err, &batchErr) {
			slog.Error("Batch stopped part way",
				"batch_id", result.BatchID,
				"card", cardID,
				"row", batchErr.Row,
				"committed", batchErr.Committed,
				"error", batchErr.Err)
		}
		return result, err
	}

	slog.Info("Batch classification complete",
		"batch_id", result.BatchID,
		"card", cardID,
		"accepted", len(result.Accepted),
		"duplicates", result.Duplicates,
		"unmatched", result.Unmatched,
		"committed", result.Committed)

	return result, nil
}

// dedup folds txns into idx in order and returns the input row of each accepted transaction.
func (e *Engine) dedup(idx *dedup.Index, txns []model.Transaction, result *model.BatchResult) []int {
	rows := make([]int, 0, len(txns))
	for i, txn := range txns {
		if idx.CheckAndAdd(txn.LedgerKey()) {
			slog.Debug("Skipping duplicate transaction",
				"row", i,
				"merchant", txn.RawMerchantName,
				"date", txn.Date.Format(model.DayLayout),
				"amount", txn.Amount)
			result.DuplicateRows = append(result.DuplicateRows, i)
			result.Duplicates++
			continue
		}
		result.Accepted = append(result.Accepted, txn)
		rows = append(rows, i)
	}
	return rows
}

// matchAll matches transactions in parallel. Results are positional.
func (e *Engine) matchAll(ctx context.Context, matcher *pattern.Matcher, txns []model.Transaction) ([]model.MatchResult, error) {
	results := make([]model.MatchResult, len(txns))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range txns {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = matcher.MatchTransaction(gctx, txns[i])

			if e.progress != nil {
				mu.Lock()
				done++
				e.progress(done, len(txns))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) appendAll(ctx context.Context, session service.LedgerSession, result *model.BatchResult, rows []int) error {
	now := time.Now()
	for i, txn := range result.Accepted {
		if err := ctx.Err(); err != nil {
			return &BatchError{Row: rows[i], Committed: result.Committed, Err: err}
		}

		match := result.Results[i]
		entry := model.LedgerEntry{
			ID:          uuid.NewString(),
			BatchID:     result.BatchID,
			Transaction: txn,
			CommittedAt: now,
		}
		entry.ApplyResult(match, model.StatusFor(match))

		if err := session.Append(ctx, &entry); err != nil {
			return &BatchError{Row: rows[i], Committed: result.Committed, Err: err}
		}
		result.Committed++

		if !match.IsMatched() {
			slog.Debug("Transaction needs review",
				"entry_id", entry.ID,
				"merchant", txn.RawMerchantName,
				"amount", txn.Amount)
		}
	}
	return nil
}

// Rematch re-runs matching for ledger entries that have no usage label. An
// empty cardID covers every card in the ledger. Entries that fail to update
// are counted and skipped.
func (e *Engine) Rematch(ctx context.Context, snap *pattern.Snapshot, cardID string) (model.RematchResult, error) {
	var total model.RematchResult

	cards := []string{strings.TrimSpace(cardID)}
	if cards[0] == "" {
		var err error
		cards, err = e.ledger.LedgerCards(ctx)
		if err != nil {
			return total, fmt.Errorf("%w: %w", common.ErrLedgerUnavailable, err)
		}
	}

	matcher := pattern.NewMatcher(snap, e.patterns)
	for _, card := range cards {
		err := e.ledger.WithLedger(ctx, card, func(session service.LedgerSession) error {
			entries, err := session.Unmatched(ctx)
			if err != nil {
				return fmt.Errorf("%w: card %s: %w", common.ErrLedgerUnavailable, card, err)
			}

			for _, entry := range entries {
				total.Total++

				match := matcher.MatchTransaction(ctx, entry.Transaction)
				if !match.IsMatched() {
					continue
				}
				if err := session.UpdateMatch(ctx, entry.ID, match, model.StatusAuto); err != nil {
					slog.Warn("Failed to update rematched entry",
						"entry_id", entry.ID,
						"card", card,
						"error", err)
					total.Failed++
					continue
				}
				total.Matched++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
	}

	slog.Info("Rematch complete",
		"total", total.Total,
		"matched", total.Matched,
		"failed", total.Failed)

	return total, nil
}

// OverrideOptions controls whether a manual label is also learned.
type OverrideOptions struct {
	SavePattern bool
	// PerCard scopes the saved pattern to the entry's card.
	PerCard bool
}

// Override sets a ledger entry's usage label by hand. With SavePattern the
// label is also learned as an exact pattern for the entry's merchant.
//
// The entry is updated before the pattern is saved, so a failed save leaves
// the label in place and returns the entry alongside the error.
func (e *Engine) Override(ctx context.Context, entryID, usageLabel string, opts OverrideOptions) (*model.LedgerEntry, error) {
	usageLabel = strings.TrimSpace(usageLabel)
	if usageLabel == "" {
		return nil, fmt.Errorf("%w: usage label is required", common.ErrMalformedReviewRow)
	}

	entry, err := e.ledger.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	result := model.MatchResult{
		UsageLabel: usageLabel,
		Kind:       model.MatchKindOverride,
		Confidence: model.MatchKindOverride.Confidence(),
	}
	if err := e.ledger.UpdateEntryMatch(ctx, entryID, result, model.StatusManual); err != nil {
		return nil, err
	}
	entry.ApplyResult(result, model.StatusManual)

	if opts.SavePattern {
		scope := model.GlobalScope()
		if opts.PerCard {
			scope = model.CardScope(entry.Transaction.CardID)
		}
		p, err := e.feed.Learn(ctx, entry.Transaction.MerchantKey(), usageLabel, scope)
		if err != nil {
			return entry, fmt.Errorf("entry %s updated but pattern not saved: %w", entryID, err)
		}

		result.PatternID = &p.ID
		if err := e.ledger.UpdateEntryMatch(ctx, entryID, result, model.StatusManual); err != nil {
			slog.Warn("Failed to link override to pattern",
				"entry_id", entryID,
				"pattern_id", p.ID,
				"error", err)
		} else {
			entry.ApplyResult(result, model.StatusManual)
		}
	}

	slog.Info("Overrode ledger entry",
		"entry_id", entryID,
		"usage", usageLabel,
		"saved_pattern", opts.SavePattern,
		"per_card", opts.PerCard)

	return entry, nil
}

// ApplyReview labels the unlabelled ledger entries named by reviewed rows
// with the reviewer's usage and marks them manual. Rows are located by their
// ledger key, so rows with an unreadable date or amount are left for Rematch.
// The pattern that now produces the same label, if any, is linked.
func (e *Engine) ApplyReview(ctx context.Context, snap *pattern.Snapshot, rows []model.ReviewRow) (model.RematchResult, error) {
	var total model.RematchResult

	byCard := make(map[string]map[model.LedgerKey]string)
	var cards []string
	for _, row := range rows {
		card := strings.TrimSpace(row.CardID)
		usage := strings.TrimSpace(row.UsageLabel)
		if card == "" || usage == "" || row.Date.IsZero() {
			continue
		}
		if byCard[card] == nil {
			byCard[card] = make(map[model.LedgerKey]string)
			cards = append(cards, card)
		}
		byCard[card][model.NewLedgerKey(card, row.Date, row.MerchantName, row.Amount)] = usage
	}

	matcher := pattern.NewMatcher(snap, nil)
	for _, card := range cards {
		reviewed := byCard[card]
		err := e.ledger.WithLedger(ctx, card, func(session service.LedgerSession) error {
			entries, err := session.Unmatched(ctx)
			if err != nil {
				return fmt.Errorf("%w: card %s: %w", common.ErrLedgerUnavailable, card, err)
			}

			for _, entry := range entries {
				usage, ok := reviewed[entry.Key()]
				if !ok {
					continue
				}
				total.Total++

				result := model.MatchResult{
					UsageLabel: usage,
					Kind:       model.MatchKindOverride,
					Confidence: model.MatchKindOverride.Confidence(),
				}
				if match := matcher.MatchTransaction(ctx, entry.Transaction); match.IsMatched() && match.UsageLabel == usage {
					result.PatternID = match.PatternID
				}
				if err := session.UpdateMatch(ctx, entry.ID, result, model.StatusManual); err != nil {
					slog.Warn("Failed to apply reviewed label",
						"entry_id", entry.ID,
						"card", card,
						"error", err)
					total.Failed++
					continue
				}
				total.Matched++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
	}

	slog.Info("Applied reviewed labels",
		"total", total.Total,
		"applied", total.Matched,
		"failed", total.Failed)

	return total, nil
}

// Suggest ranks existing patterns for an unmatched merchant.
func (e *Engine) Suggest(snap *pattern.Snapshot, merchantKey, cardID string) []model.ScoredPattern {
	return pattern.NewSuggester(snap).Suggest(merchantKey, cardID)
}

// Learn records a reviewed merchant/usage pair as an exact pattern.
func (e *Engine) Learn(ctx context.Context, merchantKey, usageLabel string, scope model.Scope) (model.Pattern, error) {
	return e.feed.Learn(ctx, merchantKey, usageLabel, scope)
}

// LearnBatch learns every labelled row of a reviewed report.
func (e *Engine) LearnBatch(ctx context.Context, rows []model.ReviewRow, perCard bool) (model.LearnReport, error) {
	return e.feed.LearnBatch(ctx, rows, perCard)
}
