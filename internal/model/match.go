package model

// MatchKind records which tier produced a match.
type MatchKind string

// Match kinds. MatchKindOverride is only ever written by an operator override, never by the matcher.
const (
	MatchKindCardSpecific MatchKind = "CARD_SPECIFIC"
	MatchKindExact        MatchKind = "EXACT"
	MatchKindRule         MatchKind = "RULE"
	MatchKindNone         MatchKind = "NONE"
	MatchKindOverride     MatchKind = "OVERRIDE"
)

// Confidence returns the fixed confidence assigned to a match kind.
func (k MatchKind) Confidence() float64 {
	switch k {
	case MatchKindCardSpecific, MatchKindExact, MatchKindOverride:
		return 1.0
	case MatchKindRule:
		return 0.9
	default:
		return 0.0
	}
}

// MatchResult is the outcome of classifying one transaction.
// An empty UsageLabel means the transaction is unmatched.
type MatchResult struct {
	PatternID  *int
	UsageLabel string
	Kind       MatchKind
	Confidence float64
}

// Unmatched returns the result for a transaction no pattern applies to.
func Unmatched() MatchResult {
	return MatchResult{Kind: MatchKindNone, Confidence: MatchKindNone.Confidence()}
}

// Matched returns the result for a transaction resolved by pattern p through tier kind.
func Matched(p Pattern, kind MatchKind) MatchResult {
	id := p.ID
	return MatchResult{
		PatternID:  &id,
		UsageLabel: p.UsageLabel,
		Kind:       kind,
		Confidence: kind.Confidence(),
	}
}

// IsMatched reports whether a usage label was assigned.
func (r MatchResult) IsMatched() bool {
	return r.Kind != MatchKindNone && r.UsageLabel != ""
}

// ScoredPattern is a ranked suggestion for an unmatched merchant.
type ScoredPattern struct {
	Pattern      Pattern
	Score        int
	CardSpecific bool
}
