// Package patterns provides test infrastructure for seeding the pattern store.
//
// Example usage:
//
//	seeded, err := patterns.NewBuilder(t).
//		WithFixture(patterns.FixtureCorporateCards).
//		WithContains("쿠팡", patterns.UsageSupplies).
//		Build(ctx, db.Storage)
package patterns

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/service"
)

// Builder provides a fluent interface for constructing test patterns.
type Builder interface {
	// WithExact adds a global exact pattern.
	WithExact(merchant string, usage Usage) Builder

	// WithCardExact adds an exact pattern scoped to one card.
	WithCardExact(cardID, merchant string, usage Usage) Builder

	// WithContains adds a global contains rule.
	WithContains(fragment string, usage Usage) Builder

	// WithRegex adds a global regex rule.
	WithRegex(expr string, usage Usage) Builder

	// WithPattern adds a fully specified pattern.
	WithPattern(p model.Pattern) Builder

	// WithFixture adds the patterns of a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Build creates the patterns in storage in the order they were added.
	Build(ctx context.Context, storage service.PatternStore) (Patterns, error)
}

// Usage is a usage label used in tests.
type Usage string

// Usage labels seen on corporate card statements.
const (
	UsageWelfare    Usage = "복리후생비"
	UsageVehicle    Usage = "차량유지비"
	UsageTravel     Usage = "여비교통비"
	UsageSupplies   Usage = "소모품비"
	UsageMeeting    Usage = "회의비"
	UsageBooks      Usage = "도서인쇄비"
	UsageEntertain  Usage = "접대비"
	UsageCommission Usage = "지급수수료"
)

// Patterns is a collection of created test patterns.
type Patterns []model.Pattern

// Find returns the first pattern with the given merchant key, or nil.
func (p Patterns) Find(merchantKey string) *model.Pattern {
	for i := range p {
		if p[i].MerchantKey == merchantKey {
			return &p[i]
		}
	}
	return nil
}

// MustFind returns the pattern with the given merchant key or fails the test.
func (p Patterns) MustFind(t *testing.T, merchantKey string) model.Pattern {
	t.Helper()
	found := p.Find(merchantKey)
	if found == nil {
		t.Fatalf("pattern %q not found in test data", merchantKey)
	}
	return *found
}

type patternBuilder struct {
	t        *testing.T
	patterns []model.Pattern
}

// NewBuilder creates a new pattern builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &patternBuilder{t: t}
}

func (b *patternBuilder) add(kind model.PatternKind, scope model.Scope, key string, usage Usage) Builder {
	return b.WithPattern(seeded(kind, scope, key, usage))
}

func (b *patternBuilder) WithExact(merchant string, usage Usage) Builder {
	return b.add(model.KindExact, model.GlobalScope(), merchant, usage)
}

func (b *patternBuilder) WithCardExact(cardID, merchant string, usage Usage) Builder {
	return b.add(model.KindExact, model.CardScope(cardID), merchant, usage)
}

func (b *patternBuilder) WithContains(fragment string, usage Usage) Builder {
	return b.add(model.KindContains, model.GlobalScope(), fragment, usage)
}

func (b *patternBuilder) WithRegex(expr string, usage Usage) Builder {
	return b.add(model.KindRegex, model.GlobalScope(), expr, usage)
}

func (b *patternBuilder) WithPattern(p model.Pattern) Builder {
	b.patterns = append(b.patterns, p)
	return b
}

func (b *patternBuilder) WithFixture(fixture Fixture) Builder {
	for _, p := range fixture.Patterns() {
		b.WithPattern(p)
	}
	return b
}

func (b *patternBuilder) Build(ctx context.Context, storage service.PatternStore) (Patterns, error) {
	b.t.Helper()

	result := make(Patterns, 0, len(b.patterns))
	for _, p := range b.patterns {
		if err := storage.CreatePattern(ctx, &p); err != nil {
			return nil, fmt.Errorf("failed to create pattern %q: %w", p.MerchantKey, err)
		}
		result = append(result, p)
	}
	return result, nil
}
