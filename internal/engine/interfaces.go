package engine

import (
	"context"

	"github.com/Veraticus/cardledger/internal/learning"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/pattern"
	"github.com/Veraticus/cardledger/internal/service"
)

// PatternStore is the part of the pattern store the engine writes to.
type PatternStore interface {
	pattern.UseCounter
	learning.PatternWriter
}

// Ledger is the card ledger collaborator. WithLedger must serialize sessions
// for the same card.
type Ledger interface {
	WithLedger(ctx context.Context, cardID string, fn func(service.LedgerSession) error) error
	LedgerCards(ctx context.Context) ([]string, error)
	GetEntry(ctx context.Context, id string) (*model.LedgerEntry, error)
	UpdateEntryMatch(ctx context.Context, id string, result model.MatchResult, status model.MatchStatus) error
}
