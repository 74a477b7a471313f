// Package storage provides the SQLite persistence layer for patterns and card ledgers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/cardledger/internal/service"
	"github.com/mattn/go-sqlite3"
)

// Ensure SQLiteStorage implements service.Storage.
var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	ledgers  *cardLocks
	dbPath   string
	revision atomic.Int64
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection also keeps an in-memory database alive for the process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStorage{
		db:      db,
		dbPath:  dbPath,
		ledgers: newCardLocks(),
	}
	s.revision.Store(1)
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Revision is bumped on every pattern write and versions loaded snapshots.
func (s *SQLiteStorage) Revision() int64 {
	return s.revision.Load()
}

func (s *SQLiteStorage) bumpRevision() {
	s.revision.Add(1)
}

type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// cardLocks hands out one exclusive slot per card ledger.
type cardLocks struct {
	locks map[string]chan struct{}
	mu    sync.Mutex
}

func newCardLocks() *cardLocks {
	return &cardLocks{locks: make(map[string]chan struct{})}
}

func (l *cardLocks) acquire(ctx context.Context, cardID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.locks[cardID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.locks[cardID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
