package pattern

import (
	"context"
	"log/slog"

	"github.com/Veraticus/cardledger/internal/model"
)

// Matcher resolves a transaction to a usage label tier by tier:
// card-specific exact, global exact, then contains/regex rules.
type Matcher struct {
	finder  Finder
	counter UseCounter
}

// NewMatcher creates a matcher over finder. A nil counter disables use-count tracking.
func NewMatcher(finder Finder, counter UseCounter) *Matcher {
	return &Matcher{
		finder:  finder,
		counter: counter,
	}
}

// Match classifies one transaction. It never fails: an unmatched transaction
// yields MatchKindNone. merchantKey must already be normalized.
func (m *Matcher) Match(ctx context.Context, merchantKey, cardID, industryCode string) model.MatchResult {
	p, kind, ok := m.resolve(merchantKey, cardID, industryCode)
	if !ok {
		return model.Unmatched()
	}

	m.recordUse(ctx, p)
	return model.Matched(p, kind)
}

// MatchTransaction is Match for a parsed transaction.
func (m *Matcher) MatchTransaction(ctx context.Context, txn model.Transaction) model.MatchResult {
	return m.Match(ctx, txn.MerchantKey(), txn.CardID, txn.IndustryCode)
}

func (m *Matcher) resolve(merchantKey, cardID, industryCode string) (model.Pattern, model.MatchKind, bool) {
	if merchantKey == "" {
		return model.Pattern{}, model.MatchKindNone, false
	}

	if cardID != "" {
		if p, ok := m.finder.FindExactInScope(merchantKey, model.CardScope(cardID)); ok {
			return p, model.MatchKindCardSpecific, true
		}
	}

	if p, ok := m.finder.FindExactInScope(merchantKey, model.GlobalScope()); ok {
		return p, model.MatchKindExact, true
	}

	if p, ok := m.finder.FindMatchingContains(merchantKey, cardID, industryCode); ok {
		return p, model.MatchKindRule, true
	}

	return model.Pattern{}, model.MatchKindNone, false
}

// recordUse bumps the winning pattern's use count. Failures are logged and
// never affect the classification.
func (m *Matcher) recordUse(ctx context.Context, p model.Pattern) {
	if m.counter == nil {
		return
	}
	if err := m.counter.IncrementUseCount(ctx, p.ID); err != nil {
		slog.Warn("Failed to increment pattern use count",
			"pattern_id", p.ID,
			"error", err)
	}
}
