package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/engine"
	"github.com/Veraticus/cardledger/internal/ingest"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/storage"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <statement>...",
		Short: "Classify card statements into the ledger",
		Long: `Parse one or more card statements (CSV or OFX), skip charges already
recorded in the ledger, label the rest with learned patterns and append them.

Each card in a statement is classified as its own batch. Charges no pattern
matched are written to a review file; fill in the usage column and feed it
back with 'cardledger learn'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("card", "", "Only classify charges for this card (full number or last four digits); also assigned to rows without a card")
	cmd.Flags().String("format", "", "Statement format (csv, ofx); detected from the file extension by default")
	cmd.Flags().Bool("dry-run", false, "Show what would be recorded without writing to the ledger")
	cmd.Flags().String("review-dir", "", "Directory for review files (overrides review.dir)")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	card, _ := cmd.Flags().GetString("card")
	format, _ := cmd.Flags().GetString("format")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	reviewDir, _ := cmd.Flags().GetString("review-dir")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	store, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if reviewDir == "" {
		reviewDir = cfg.ReviewDir
	}

	var txns []model.Transaction
	for _, path := range args {
		fileFormat := format
		if fileFormat == "" {
			fileFormat = ingest.DetectFormat(path)
		}
		parsed, err := parseStatement(ctx, path, fileFormat, cfg.OFXMinorDigits)
		if err != nil {
			return err
		}
		txns = append(txns, parsed...)
	}

	if card != "" {
		card = ingest.CardSuffix(card)
		if card == "" {
			return common.NewUserError("--card must contain digits", nil)
		}
		var skipped int
		txns, skipped = selectCard(txns, card)
		if skipped > 0 {
			slog.Info("Skipped charges for other cards", "card", card, "skipped", skipped)
		}
		if len(txns) == 0 {
			return common.NewUserError(fmt.Sprintf("no charges for card %s", card), nil)
		}
	}
	cards, batches := ingest.SplitByCard(txns)

	var progress io.Writer
	if !noProgress {
		progress = os.Stderr
	}
	eng, reporter := newEngine(store, cfg, progress)

	for _, batchCard := range cards {
		if batchCard == "" {
			return common.NewUserError(
				fmt.Sprintf("%d charges have no card number; pass --card", len(batches[batchCard])), nil)
		}
		if err := classifyCard(ctx, cmd, eng, store, batchCard, batches[batchCard], dryRun, reviewDir); err != nil {
			if reporter != nil {
				reporter.Finish()
			}
			return err
		}
		if reporter != nil {
			reporter.Finish()
		}
	}
	return nil
}

// selectCard keeps the charges for card and assigns it to charges that carry
// no card number. It reports how many charges belonged to other cards.
func selectCard(txns []model.Transaction, card string) ([]model.Transaction, int) {
	selected := make([]model.Transaction, 0, len(txns))
	for _, txn := range txns {
		if suffix := ingest.CardSuffix(txn.CardID); suffix != "" && suffix != card {
			continue
		}
		txn.CardID = card
		selected = append(selected, txn)
	}
	return selected, len(txns) - len(selected)
}

func parseStatement(ctx context.Context, path, format string, minorDigits int) ([]model.Transaction, error) {
	source, err := ingest.NewSource(format, minorDigits)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = file.Close() }()

	txns, err := source.Parse(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return txns, nil
}

func classifyCard(ctx context.Context, cmd *cobra.Command, eng *engine.Engine, store *storage.SQLiteStorage,
	card string, txns []model.Transaction, dryRun bool, reviewDir string,
) error {
	// Reload per batch so patterns learned since the last batch apply
	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	var result *model.BatchResult
	if dryRun {
		result, err = eng.Preview(ctx, snap, card, txns)
	} else {
		result, err = eng.ClassifyBatch(ctx, snap, card, txns)
	}

	var batchErr *engine.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return err
	}

	reviewPath := ""
	if !dryRun {
		pending := committedPending(result)
		if len(pending) > 0 {
			reviewPath, err = writeReviewFile(reviewDir, result.CardID, result.BatchID, pending)
			if err != nil {
				return err
			}
		}
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBatchSummary(result, reviewPath))

	if batchErr != nil {
		return fmt.Errorf("card %s: %w", card, batchErr)
	}
	return nil
}

// committedPending returns the unmatched transactions that made it into the ledger.
func committedPending(result *model.BatchResult) []model.Transaction {
	var pending []model.Transaction
	for i := 0; i < result.Committed && i < len(result.Results); i++ {
		if !result.Results[i].IsMatched() {
			pending = append(pending, result.Accepted[i])
		}
	}
	return pending
}

func writeReviewFile(dir, card, batchID string, pending []model.Transaction) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create review directory: %w", err)
	}

	short := batchID
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("pending-%s-%s.csv", card, short))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create review file: %w", err)
	}

	if err := ingest.WriteReview(file, pending); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close review file: %w", err)
	}

	slog.Info("Wrote review file", "path", path, "rows", len(pending))
	return path, nil
}
