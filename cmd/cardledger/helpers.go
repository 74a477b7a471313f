package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/config"
	"github.com/Veraticus/cardledger/internal/engine"
	"github.com/Veraticus/cardledger/internal/storage"
	"github.com/spf13/viper"
)

// openStorage loads the configuration and opens a migrated database.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, config.Config{}, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, config.Config{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// newEngine wires the classification engine to store. A non-nil progress
// writer gets a progress bar.
func newEngine(store *storage.SQLiteStorage, cfg config.Config, progress io.Writer) (*engine.Engine, *cli.ProgressReporter) {
	engineCfg := engine.DefaultConfig()
	engineCfg.Workers = cfg.Workers

	var reporter *cli.ProgressReporter
	if progress != nil {
		reporter = cli.NewProgressReporter(progress, "Matching transactions...")
		engineCfg.Progress = reporter.Report
	}
	return engine.NewWithConfig(store, store, engineCfg), reporter
}
