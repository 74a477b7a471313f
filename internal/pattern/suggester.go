package pattern

import (
	"sort"
	"strings"

	"github.com/Veraticus/cardledger/internal/model"
)

// MaxSuggestions is the number of ranked patterns returned by Suggest.
const MaxSuggestions = 5

// Suggestion scores.
const (
	ScoreIdentical     = 100
	ScorePatternInName = 80
	ScoreNameInPattern = 60
	ScoreSharedToken   = 40
)

// Suggester ranks existing patterns for a merchant that has no exact match.
// It is advisory only and never applies a label.
type Suggester struct {
	patterns []model.Pattern
}

// NewSuggester creates a suggester over the patterns in snapshot.
func NewSuggester(snapshot *Snapshot) *Suggester {
	return &Suggester{patterns: snapshot.Patterns()}
}

// Suggest returns up to MaxSuggestions patterns ordered by score. Card-specific
// patterns for cardID rank above global ones at equal score. Patterns scoped to
// other cards are ignored when cardID is set.
func (s *Suggester) Suggest(merchantKey, cardID string) []model.ScoredPattern {
	merchantKey = model.NormalizeMerchant(merchantKey)
	if merchantKey == "" {
		return nil
	}

	var scored []model.ScoredPattern
	for _, p := range s.patterns {
		if cardID != "" && !p.Scope.Includes(cardID) {
			continue
		}

		score := Score(merchantKey, p.MerchantKey)
		if score == 0 {
			continue
		}

		scored = append(scored, model.ScoredPattern{
			Pattern:      p,
			Score:        score,
			CardSpecific: !p.Scope.IsGlobal() && p.Scope.CardID == cardID,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CardSpecific != b.CardSpecific {
			return a.CardSpecific
		}
		if a.Pattern.UseCount != b.Pattern.UseCount {
			return a.Pattern.UseCount > b.Pattern.UseCount
		}
		return a.Pattern.ID < b.Pattern.ID
	})

	if len(scored) > MaxSuggestions {
		scored = scored[:MaxSuggestions]
	}
	return scored
}

// Score rates how closely a pattern key resembles a merchant name. Zero means unrelated.
func Score(merchantKey, patternKey string) int {
	if patternKey == "" {
		return 0
	}

	switch {
	case merchantKey == patternKey:
		return ScoreIdentical
	case strings.Contains(merchantKey, patternKey):
		return ScorePatternInName
	case strings.Contains(patternKey, merchantKey):
		return ScoreNameInPattern
	}

	for _, token := range strings.Fields(patternKey) {
		if strings.Contains(merchantKey, token) {
			return ScoreSharedToken
		}
	}
	return 0
}
