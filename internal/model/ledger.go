package model

import "time"

// MatchStatus indicates how a ledger entry received its usage label.
type MatchStatus string

// Match status constants.
const (
	StatusAuto    MatchStatus = "AUTO"
	StatusManual  MatchStatus = "MANUAL"
	StatusPending MatchStatus = "PENDING"
)

// StatusFor returns the ledger status implied by a match result.
func StatusFor(result MatchResult) MatchStatus {
	if result.IsMatched() {
		return StatusAuto
	}
	return StatusPending
}

// LedgerEntry is a committed transaction together with its classification.
type LedgerEntry struct {
	CommittedAt time.Time
	Transaction Transaction
	PatternID   *int
	ID          string
	BatchID     string
	UsageLabel  string
	Status      MatchStatus
	MatchKind   MatchKind
	Confidence  float64
}

// Key returns the duplicate-detection identity of the entry.
func (e LedgerEntry) Key() LedgerKey {
	return e.Transaction.LedgerKey()
}

// ApplyResult copies a match result onto the entry.
func (e *LedgerEntry) ApplyResult(result MatchResult, status MatchStatus) {
	e.UsageLabel = result.UsageLabel
	e.MatchKind = result.Kind
	e.Confidence = result.Confidence
	e.PatternID = result.PatternID
	e.Status = status
}
