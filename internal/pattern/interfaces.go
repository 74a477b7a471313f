// Package pattern resolves merchant names to usage labels using stored patterns.
package pattern

import (
	"context"

	"github.com/Veraticus/cardledger/internal/model"
)

// Finder is the read side of the pattern store.
type Finder interface {
	// FindExact returns the highest-priority exact pattern scoped to cardID,
	// falling back to the highest-priority global exact pattern.
	FindExact(merchantKey, cardID string) (model.Pattern, bool)
	// FindExactInScope returns the highest-priority exact pattern within one scope only.
	FindExactInScope(merchantKey string, scope model.Scope) (model.Pattern, bool)
	// FindMatchingContains returns the first contains/regex pattern that holds for the merchant.
	FindMatchingContains(merchantKey, cardID, industryCode string) (model.Pattern, bool)
}

// UseCounter records that a pattern produced a match.
type UseCounter interface {
	IncrementUseCount(ctx context.Context, id int) error
}
