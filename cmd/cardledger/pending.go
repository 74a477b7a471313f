package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/ingest"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List ledger entries awaiting review",
		Long: `List ledger entries that have no usage yet. With --export the entries are
written as a review file instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			card, _ := cmd.Flags().GetString("card")
			export, _ := cmd.Flags().GetString("export")

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.UnmatchedEntries(ctx, card)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Nothing awaiting review"))
				return nil
			}

			if export == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderLedgerEntries(entries))
				return nil
			}

			txns := make([]model.Transaction, len(entries))
			for i, e := range entries {
				txns[i] = e.Transaction
			}

			file, err := os.Create(export)
			if err != nil {
				return fmt.Errorf("failed to create review file: %w", err)
			}
			if err := ingest.WriteReview(file, txns); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(),
				cli.FormatSuccess(fmt.Sprintf("Exported %d entries to %s", len(entries), export)))
			return nil
		},
	}

	cmd.Flags().String("card", "", "Only list this card")
	cmd.Flags().String("export", "", "Write a review file to this path")
	return cmd
}
