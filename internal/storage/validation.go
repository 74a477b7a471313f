package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/pattern"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidStatus      = errors.New("invalid match status")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validatePattern(p *model.Pattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	return pattern.Validate(*p)
}

func validateStatus(status model.MatchStatus) error {
	switch status {
	case model.StatusAuto, model.StatusManual, model.StatusPending:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

func validateMatch(result model.MatchResult, status model.MatchStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}
	return nil
}

// validateEntry validates a ledger entry about to be appended to cardID's ledger.
func validateEntry(entry *model.LedgerEntry, cardID string) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	txn := entry.Transaction
	if entry.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if model.NormalizeMerchant(txn.RawMerchantName) == "" {
		return fmt.Errorf("%w: missing merchant", ErrInvalidTransaction)
	}
	if txn.CardID != cardID {
		return fmt.Errorf("%w: entry for card %q appended to ledger %q", ErrInvalidTransaction, txn.CardID, cardID)
	}
	return validateMatch(model.MatchResult{Confidence: entry.Confidence}, entry.Status)
}
