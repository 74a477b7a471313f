// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/pattern"
)

// PatternFilter defines filtering options for pattern listings.
type PatternFilter struct {
	Kind            model.PatternKind
	CardID          string // Restrict to patterns scoped to this card
	GlobalOnly      bool
	IncludeInactive bool
}

// PatternStore is the persistence contract behind the matcher and the learning feed.
type PatternStore interface {
	// LoadSnapshot reads every active pattern into an immutable snapshot
	// versioned by the store's current revision.
	LoadSnapshot(ctx context.Context) (*pattern.Snapshot, error)
	IncrementUseCount(ctx context.Context, id int) error
	FindOrCreate(ctx context.Context, merchantKey, usageLabel string, scope model.Scope, createdBy string) (model.Pattern, model.UpsertOutcome, error)

	// Administrative operations
	CreatePattern(ctx context.Context, p *model.Pattern) error
	GetPattern(ctx context.Context, id int) (*model.Pattern, error)
	ListPatterns(ctx context.Context, filter PatternFilter) ([]model.Pattern, error)
	UpdatePattern(ctx context.Context, p *model.Pattern) error
	DeletePattern(ctx context.Context, id int) error
	PatternStats(ctx context.Context) (*model.PatternStats, error)
}

// LedgerSession is exclusive access to one card's ledger. Sessions for the
// same card never overlap.
type LedgerSession interface {
	CardID() string
	Keys(ctx context.Context) ([]model.LedgerKey, error)
	Append(ctx context.Context, entry *model.LedgerEntry) error
	Unmatched(ctx context.Context) ([]model.LedgerEntry, error)
	UpdateMatch(ctx context.Context, id string, result model.MatchResult, status model.MatchStatus) error
}

// Ledger is the durable record of committed, classified transactions.
type Ledger interface {
	// WithLedger runs fn while holding the card's ledger. Rows appended by fn
	// before it returns an error stay committed.
	WithLedger(ctx context.Context, cardID string, fn func(LedgerSession) error) error
	LedgerCards(ctx context.Context) ([]string, error)
	GetEntry(ctx context.Context, id string) (*model.LedgerEntry, error)
	UnmatchedEntries(ctx context.Context, cardID string) ([]model.LedgerEntry, error)
	UpdateEntryMatch(ctx context.Context, id string, result model.MatchResult, status model.MatchStatus) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	PatternStore
	Ledger

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
