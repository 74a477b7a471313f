package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create patterns table",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					merchant_key TEXT NOT NULL,
					usage_label TEXT NOT NULL,
					kind TEXT NOT NULL CHECK (kind IN ('exact', 'contains', 'regex')),
					card_id TEXT NOT NULL DEFAULT '',
					priority INTEGER NOT NULL DEFAULT 0,
					use_count INTEGER NOT NULL DEFAULT 0,
					created_by TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_patterns_merchant ON patterns(merchant_key, card_id)`,
				`CREATE INDEX idx_patterns_active ON patterns(is_active, priority DESC)`,
				// At most one active exact pattern per merchant and scope.
				`CREATE UNIQUE INDEX idx_patterns_exact_scope
					ON patterns(merchant_key, card_id)
					WHERE kind = 'exact' AND is_active = 1`,
			})
		},
	},
	{
		Version:     2,
		Description: "Create card ledger",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS ledger_entries (
					id TEXT PRIMARY KEY,
					batch_id TEXT NOT NULL,
					card_id TEXT NOT NULL,
					txn_date DATETIME NOT NULL,
					day TEXT NOT NULL,
					merchant_name TEXT NOT NULL,
					amount INTEGER NOT NULL,
					industry TEXT NOT NULL DEFAULT '',
					usage_label TEXT NOT NULL DEFAULT '',
					match_kind TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					pattern_id INTEGER,
					status TEXT NOT NULL,
					committed_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX idx_ledger_key ON ledger_entries(card_id, day, merchant_name, amount)`,
				`CREATE INDEX idx_ledger_unmatched ON ledger_entries(card_id, usage_label)`,
				`CREATE INDEX idx_ledger_batch ON ledger_entries(batch_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add industry condition to patterns",
		Up: func(tx *sql.Tx) error {
			if err := execAll(tx, []string{
				`ALTER TABLE patterns ADD COLUMN industry_code TEXT NOT NULL DEFAULT ''`,
				`CREATE TRIGGER update_patterns_updated_at
				AFTER UPDATE OF merchant_key, usage_label, kind, card_id, priority, is_active, industry_code ON patterns
				FOR EACH ROW
				BEGIN
					UPDATE patterns SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END`,
			}); err != nil {
				return err
			}

			slog.Info("Added industry conditions to patterns")
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
