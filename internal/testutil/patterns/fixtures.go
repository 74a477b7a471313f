package patterns

import "github.com/Veraticus/cardledger/internal/model"

// Fixture is a predefined set of patterns for a test scenario.
type Fixture interface {
	Name() string
	Patterns() []model.Pattern
}

type fixture struct {
	name     string
	patterns []model.Pattern
}

func (f *fixture) Name() string              { return f.name }
func (f *fixture) Patterns() []model.Pattern { return f.patterns }

func seeded(kind model.PatternKind, scope model.Scope, key string, usage Usage) model.Pattern {
	p := model.Pattern{
		MerchantKey: key,
		UsageLabel:  string(usage),
		Scope:       scope,
		Kind:        kind,
		CreatedBy:   model.CreatedByMigration,
		IsActive:    true,
	}
	if !scope.IsGlobal() {
		p.Priority = model.DefaultCardPriority
	}
	return p
}

// Predefined fixtures.
var (
	// FixtureCorporateCards covers every matching tier across a few company cards.
	FixtureCorporateCards Fixture = &fixture{
		name: "CorporateCards",
		patterns: []model.Pattern{
			seeded(model.KindExact, model.GlobalScope(), "스타벅스강남점", UsageWelfare),
			seeded(model.KindExact, model.GlobalScope(), "맥도날드 안산고잔DT점", UsageWelfare),
			seeded(model.KindExact, model.GlobalScope(), "한국도로공사 하이패스", UsageTravel),
			seeded(model.KindExact, model.CardScope("6902"), "한국도로공사 하이패스", UsageVehicle),
			seeded(model.KindContains, model.GlobalScope(), "쿠팡", UsageSupplies),
			seeded(model.KindRegex, model.GlobalScope(), `GS25.*점`, UsageSupplies),
		},
	}

	// FixtureEmpty seeds nothing.
	FixtureEmpty Fixture = &fixture{name: "Empty"}
)
