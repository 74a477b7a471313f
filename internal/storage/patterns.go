package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/pattern"
	"github.com/Veraticus/cardledger/internal/service"
)

const patternColumns = `id, merchant_key, usage_label, kind, card_id, industry_code,
	priority, use_count, created_by, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (model.Pattern, error) {
	var p model.Pattern
	var kind, cardID string
	err := row.Scan(
		&p.ID, &p.MerchantKey, &p.UsageLabel, &kind, &cardID, &p.IndustryCode,
		&p.Priority, &p.UseCount, &p.CreatedBy, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Pattern{}, err
	}
	p.Kind = model.PatternKind(kind)
	p.Scope = model.CardScope(cardID)
	return p, nil
}

func queryPatterns(ctx context.Context, q queryable, query string, args ...any) ([]model.Pattern, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}

	return patterns, nil
}

// LoadSnapshot reads every active pattern into a snapshot versioned by the
// current revision.
func (s *SQLiteStorage) LoadSnapshot(ctx context.Context) (*pattern.Snapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	version := s.Revision()
	patterns, err := queryPatterns(ctx, s.db,
		`SELECT `+patternColumns+` FROM patterns WHERE is_active = 1 ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, err
	}

	return pattern.NewSnapshot(version, patterns), nil
}

// IncrementUseCount records that a pattern produced a match.
func (s *SQLiteStorage) IncrementUseCount(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE patterns SET use_count = use_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment use count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pattern %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// FindOrCreate upserts the active exact pattern for merchantKey in scope. An
// existing pattern with a different label is relabelled rather than duplicated.
func (s *SQLiteStorage) FindOrCreate(ctx context.Context, merchantKey, usageLabel string, scope model.Scope, createdBy string) (model.Pattern, model.UpsertOutcome, error) {
	if err := validateContext(ctx); err != nil {
		return model.Pattern{}, model.OutcomeUnchanged, err
	}
	if err := validateString(merchantKey, "merchantKey"); err != nil {
		return model.Pattern{}, model.OutcomeUnchanged, err
	}
	if err := validateString(usageLabel, "usageLabel"); err != nil {
		return model.Pattern{}, model.OutcomeUnchanged, err
	}

	merchantKey = model.NormalizeMerchant(merchantKey)
	usageLabel = strings.TrimSpace(usageLabel)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanPattern(tx.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM patterns
		WHERE merchant_key = ? AND card_id = ? AND kind = 'exact' AND is_active = 1`,
		merchantKey, scope.CardID))

	switch {
	case err == nil:
		if existing.UsageLabel == usageLabel {
			return existing, model.OutcomeUnchanged, nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE patterns SET usage_label = ? WHERE id = ?`, usageLabel, existing.ID); err != nil {
			return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("failed to relabel pattern: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("failed to commit pattern update: %w", err)
		}
		s.bumpRevision()

		existing.UsageLabel = usageLabel
		existing.UpdatedAt = time.Now()
		return existing, model.OutcomeUpdated, nil

	case errors.Is(err, sql.ErrNoRows):
		p := model.Pattern{
			MerchantKey: merchantKey,
			UsageLabel:  usageLabel,
			Scope:       scope,
			Kind:        model.KindExact,
			CreatedBy:   createdBy,
			IsActive:    true,
		}
		if !scope.IsGlobal() {
			p.Priority = model.DefaultCardPriority
		}
		if err := insertPattern(ctx, tx, &p); err != nil {
			return model.Pattern{}, model.OutcomeUnchanged, err
		}
		if err := tx.Commit(); err != nil {
			return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("failed to commit pattern: %w", err)
		}
		s.bumpRevision()
		return p, model.OutcomeCreated, nil

	default:
		return model.Pattern{}, model.OutcomeUnchanged, fmt.Errorf("failed to look up pattern: %w", err)
	}
}

// CreatePattern stores a new pattern. Creating a second active exact pattern
// for the same merchant and scope fails with common.ErrDuplicatePattern.
func (s *SQLiteStorage) CreatePattern(ctx context.Context, p *model.Pattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(p); err != nil {
		return err
	}
	if p.CreatedBy == "" {
		p.CreatedBy = model.CreatedByAdmin
	}

	if err := insertPattern(ctx, s.db, p); err != nil {
		return err
	}
	s.bumpRevision()
	return nil
}

func insertPattern(ctx context.Context, q queryable, p *model.Pattern) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO patterns (
			merchant_key, usage_label, kind, card_id, industry_code,
			priority, use_count, created_by, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.MerchantKey, p.UsageLabel, string(p.Kind), p.Scope.CardID, p.IndustryCode,
		p.Priority, p.UseCount, p.CreatedBy, p.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: exact pattern for %q in scope %s already exists",
				common.ErrDuplicatePattern, p.MerchantKey, p.Scope)
		}
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pattern ID: %w", err)
	}

	now := time.Now()
	p.ID = int(id)
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *SQLiteStorage) GetPattern(ctx context.Context, id int) (*model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	p, err := scanPattern(s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pattern %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}
	return &p, nil
}

// ListPatterns returns patterns matching filter, highest priority first.
func (s *SQLiteStorage) ListPatterns(ctx context.Context, filter service.PatternFilter) ([]model.Pattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if !filter.IncludeInactive {
		where = append(where, "is_active = 1")
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	switch {
	case filter.GlobalOnly:
		where = append(where, "card_id = ''")
	case filter.CardID != "":
		where = append(where, "card_id = ?")
		args = append(args, filter.CardID)
	}

	query := `SELECT ` + patternColumns + ` FROM patterns`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, use_count DESC, id ASC"

	return queryPatterns(ctx, s.db, query, args...)
}

// UpdatePattern rewrites a pattern's mutable fields.
func (s *SQLiteStorage) UpdatePattern(ctx context.Context, p *model.Pattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(p); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE patterns SET
			merchant_key = ?, usage_label = ?, kind = ?, card_id = ?, industry_code = ?,
			priority = ?, is_active = ?
		WHERE id = ?
	`, p.MerchantKey, p.UsageLabel, string(p.Kind), p.Scope.CardID, p.IndustryCode,
		p.Priority, p.IsActive, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: exact pattern for %q in scope %s already exists",
				common.ErrDuplicatePattern, p.MerchantKey, p.Scope)
		}
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pattern %d: %w", p.ID, common.ErrNotFound)
	}

	s.bumpRevision()
	return nil
}

// DeletePattern removes a pattern. Ledger rows it classified keep their label.
func (s *SQLiteStorage) DeletePattern(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM patterns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pattern %d: %w", id, common.ErrNotFound)
	}

	s.bumpRevision()
	return nil
}

// PatternStats counts active patterns by kind and by scope.
func (s *SQLiteStorage) PatternStats(ctx context.Context) (*model.PatternStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, card_id, COUNT(*)
		FROM patterns
		WHERE is_active = 1
		GROUP BY kind, card_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &model.PatternStats{
		ByKind:  make(map[model.PatternKind]int),
		ByScope: make(map[string]int),
	}
	for rows.Next() {
		var kind, cardID string
		var count int
		if err := rows.Scan(&kind, &cardID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan pattern stats: %w", err)
		}
		stats.ByKind[model.PatternKind(kind)] += count
		stats.ByScope[model.CardScope(cardID).String()] += count
		stats.Total += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern stats: %w", err)
	}

	return stats, nil
}
