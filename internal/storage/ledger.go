package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/service"
)

const entryColumns = `id, batch_id, card_id, txn_date, merchant_name, amount, industry,
	usage_label, match_kind, confidence, pattern_id, status, committed_at`

func scanEntry(row rowScanner) (model.LedgerEntry, error) {
	var e model.LedgerEntry
	var patternID sql.NullInt64
	var kind, status string
	err := row.Scan(
		&e.ID, &e.BatchID, &e.Transaction.CardID, &e.Transaction.Date,
		&e.Transaction.RawMerchantName, &e.Transaction.Amount, &e.Transaction.IndustryCode,
		&e.UsageLabel, &kind, &e.Confidence, &patternID, &status, &e.CommittedAt,
	)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	e.MatchKind = model.MatchKind(kind)
	e.Status = model.MatchStatus(status)
	if patternID.Valid {
		id := int(patternID.Int64)
		e.PatternID = &id
	}
	return e, nil
}

func queryEntries(ctx context.Context, q queryable, query string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger: %w", err)
	}

	return entries, nil
}

func nullPatternID(id *int) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

// WithLedger runs fn with exclusive access to cardID's ledger. Each append
// commits on its own, so rows written before fn fails stay in the ledger.
func (s *SQLiteStorage) WithLedger(ctx context.Context, cardID string, fn func(service.LedgerSession) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(cardID, "cardID"); err != nil {
		return err
	}

	release, err := s.ledgers.acquire(ctx, cardID)
	if err != nil {
		return fmt.Errorf("failed to acquire ledger for card %s: %w", cardID, err)
	}
	defer release()

	return fn(&ledgerSession{storage: s, cardID: cardID})
}

// LedgerCards lists every card with at least one ledger entry.
func (s *SQLiteStorage) LedgerCards(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT card_id FROM ledger_entries ORDER BY card_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []string
	for rows.Next() {
		var card string
		if err := rows.Scan(&card); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	return cards, nil
}

// GetEntry retrieves a ledger entry by ID.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger entry %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &e, nil
}

// UnmatchedEntries lists entries without a usage label. An empty cardID lists every card.
func (s *SQLiteStorage) UnmatchedEntries(ctx context.Context, cardID string) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	if cardID == "" {
		return queryEntries(ctx, s.db,
			`SELECT `+entryColumns+` FROM ledger_entries
			WHERE usage_label = ''
			ORDER BY card_id, txn_date, id`)
	}
	return unmatchedForCard(ctx, s.db, cardID)
}

func unmatchedForCard(ctx context.Context, q queryable, cardID string) ([]model.LedgerEntry, error) {
	return queryEntries(ctx, q,
		`SELECT `+entryColumns+` FROM ledger_entries
		WHERE card_id = ? AND usage_label = ''
		ORDER BY txn_date, id`, cardID)
}

// UpdateEntryMatch relabels one entry while holding its card's ledger.
func (s *SQLiteStorage) UpdateEntryMatch(ctx context.Context, id string, result model.MatchResult, status model.MatchStatus) error {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	return s.WithLedger(ctx, entry.Transaction.CardID, func(session service.LedgerSession) error {
		return session.UpdateMatch(ctx, id, result, status)
	})
}

type ledgerSession struct {
	storage *SQLiteStorage
	cardID  string
}

func (l *ledgerSession) CardID() string {
	return l.cardID
}

func (l *ledgerSession) Keys(ctx context.Context) ([]model.LedgerKey, error) {
	rows, err := l.storage.db.QueryContext(ctx,
		`SELECT day, merchant_name, amount FROM ledger_entries WHERE card_id = ?`, l.cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []model.LedgerKey
	for rows.Next() {
		k := model.LedgerKey{CardID: l.cardID}
		if err := rows.Scan(&k.Day, &k.Merchant, &k.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger keys: %w", err)
	}

	return keys, nil
}

func (l *ledgerSession) Append(ctx context.Context, entry *model.LedgerEntry) error {
	if err := validateEntry(entry, l.cardID); err != nil {
		return err
	}

	txn := entry.Transaction
	key := txn.LedgerKey()
	if entry.CommittedAt.IsZero() {
		entry.CommittedAt = time.Now()
	}

	_, err := l.storage.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, batch_id, card_id, txn_date, day, merchant_name, amount, industry,
			usage_label, match_kind, confidence, pattern_id, status, committed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.BatchID, l.cardID, txn.Date, key.Day, key.Merchant, txn.Amount, txn.IndustryCode,
		entry.UsageLabel, string(entry.MatchKind), entry.Confidence, nullPatternID(entry.PatternID),
		string(entry.Status), entry.CommittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s %q %d", common.ErrDuplicateEntry, key.CardID, key.Day, key.Merchant, key.Amount)
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (l *ledgerSession) Unmatched(ctx context.Context) ([]model.LedgerEntry, error) {
	return unmatchedForCard(ctx, l.storage.db, l.cardID)
}

func (l *ledgerSession) UpdateMatch(ctx context.Context, id string, result model.MatchResult, status model.MatchStatus) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateMatch(result, status); err != nil {
		return err
	}

	res, err := l.storage.db.ExecContext(ctx, `
		UPDATE ledger_entries SET
			usage_label = ?, match_kind = ?, confidence = ?, pattern_id = ?, status = ?
		WHERE id = ? AND card_id = ?
	`, result.UsageLabel, string(result.Kind), result.Confidence, nullPatternID(result.PatternID),
		string(status), id, l.cardID)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ledger entry %s on card %s: %w", id, l.cardID, common.ErrNotFound)
	}
	return nil
}
