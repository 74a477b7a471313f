// Package model defines the core data structures for the cardledger application.
package model

import (
	"fmt"
	"time"
)

// PatternKind selects the predicate a pattern applies to merchant text.
type PatternKind string

// Pattern kinds.
const (
	KindExact    PatternKind = "exact"
	KindContains PatternKind = "contains"
	KindRegex    PatternKind = "regex"
)

// Valid reports whether k is a known pattern kind.
func (k PatternKind) Valid() bool {
	switch k {
	case KindExact, KindContains, KindRegex:
		return true
	}
	return false
}

// IsRule reports whether the kind belongs to the rule tier (contains or regex).
func (k PatternKind) IsRule() bool {
	return k == KindContains || k == KindRegex
}

// ParsePatternKind converts a user supplied string into a PatternKind.
func ParsePatternKind(s string) (PatternKind, error) {
	k := PatternKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown pattern kind %q (want exact, contains or regex)", s)
	}
	return k, nil
}

// Provenance tags recorded in Pattern.CreatedBy.
const (
	CreatedByManual    = "manual"
	CreatedByMigration = "migration"
	CreatedByAdmin     = "admin"
)

// DefaultCardPriority is the priority given to card-specific patterns learned from review.
const DefaultCardPriority = 10

// Scope restricts which cards a pattern applies to. The zero value is the global scope.
type Scope struct {
	CardID string
}

// GlobalScope returns the scope that applies to every card.
func GlobalScope() Scope {
	return Scope{}
}

// CardScope returns a scope restricted to a single card.
func CardScope(cardID string) Scope {
	return Scope{CardID: cardID}
}

// IsGlobal reports whether the scope applies to all cards.
func (s Scope) IsGlobal() bool {
	return s.CardID == ""
}

// Includes reports whether a transaction on cardID falls inside the scope.
func (s Scope) Includes(cardID string) bool {
	return s.IsGlobal() || s.CardID == cardID
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "common"
	}
	return "card:" + s.CardID
}

// Pattern maps a merchant signature to a usage label.
type Pattern struct {
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	MerchantKey  string      `json:"merchant_key"`
	UsageLabel   string      `json:"usage_label"`
	CreatedBy    string      `json:"created_by"`
	IndustryCode string      `json:"industry_code,omitempty"`
	Scope        Scope       `json:"scope"`
	Kind         PatternKind `json:"kind"`
	ID           int         `json:"id"`
	Priority     int         `json:"priority"`
	UseCount     int         `json:"use_count"`
	IsActive     bool        `json:"is_active"`
}

// PatternStats summarizes the pattern store.
type PatternStats struct {
	ByKind  map[PatternKind]int
	ByScope map[string]int
	Total   int
}

// UpsertOutcome reports what FindOrCreate did.
type UpsertOutcome int

// Upsert outcomes.
const (
	OutcomeUnchanged UpsertOutcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}
