// Package testutil provides test utilities for the cardledger project.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/cardledger/internal/storage"
	"github.com/Veraticus/cardledger/internal/testutil/patterns"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage  *storage.SQLiteStorage
	t        *testing.T
	Patterns patterns.Patterns
}

// SetupTestDB creates a new in-memory test database seeded with the given fixture.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, patterns.FixtureCorporateCards)
func SetupTestDB(t *testing.T, fixture patterns.Fixture) *TestDB {
	t.Helper()
	return SetupTestDBWithBuilder(t, func(b patterns.Builder) patterns.Builder {
		if fixture == nil {
			return b
		}
		return b.WithFixture(fixture)
	})
}

// SetupTestDBWithBuilder creates a test database using a pattern builder.
func SetupTestDBWithBuilder(t *testing.T, configure func(patterns.Builder) patterns.Builder) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	// Run migrations
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	builder := patterns.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}

	seeded, err := builder.Build(ctx, store)
	if err != nil {
		t.Fatalf("failed to seed patterns: %v", err)
	}

	return &TestDB{
		Storage:  store,
		Patterns: seeded,
		t:        t,
	}
}

// MustPatternID returns the ID of the seeded pattern with the given merchant key or fails the test.
func (db *TestDB) MustPatternID(merchantKey string) int {
	db.t.Helper()
	return db.Patterns.MustFind(db.t, merchantKey).ID
}
