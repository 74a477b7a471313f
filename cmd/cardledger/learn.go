package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/ingest"
	"github.com/spf13/cobra"
)

func learnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn <review.csv>",
		Short: "Learn patterns from a reviewed file",
		Long: `Read a review file whose usage column has been filled in and record each
merchant/usage pair as an exact pattern. Rows left blank are skipped.

The ledger entries named by the file take the reviewer's usage and are marked
manual. With --rematch the remaining unlabelled entries are matched again.

With --per-card the patterns only apply to the card each row came from.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			perCard, _ := cmd.Flags().GetBool("per-card")
			rematch, _ := cmd.Flags().GetBool("rematch")

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open review file: %w", err)
			}
			rows, err := ingest.ReadReview(file)
			_ = file.Close()
			if err != nil {
				return err
			}

			store, cfg, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, _ := newEngine(store, cfg, nil)
			report, err := eng.LearnBatch(ctx, rows, perCard)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderLearnReport(report))
			if err != nil {
				return err
			}

			snap, err := store.LoadSnapshot(ctx)
			if err != nil {
				return err
			}
			applied, err := eng.ApplyReview(ctx, snap, rows)
			if err != nil {
				return err
			}
			if applied.Total > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(),
					cli.FormatSuccess(fmt.Sprintf("Labelled %d reviewed entries", applied.Matched)))
			}

			if !rematch || report.Learned() == 0 {
				return nil
			}

			result, err := eng.Rematch(ctx, snap, "")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(),
				cli.FormatSuccess(fmt.Sprintf("Rematched %d of %d unlabelled entries", result.Matched, result.Total)))
			return nil
		},
	}

	cmd.Flags().Bool("per-card", false, "Scope learned patterns to the card of each row")
	cmd.Flags().Bool("rematch", true, "Rematch unlabelled ledger entries after learning")
	return cmd
}
