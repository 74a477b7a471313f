package main

import (
	"fmt"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/spf13/cobra"
)

func rematchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rematch",
		Short: "Re-run matching for unlabelled ledger entries",
		Long: `Match every ledger entry that still has no usage against the current
patterns. Entries that already carry a usage are never touched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			card, _ := cmd.Flags().GetString("card")

			store, cfg, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snap, err := store.LoadSnapshot(ctx)
			if err != nil {
				return err
			}

			eng, _ := newEngine(store, cfg, nil)
			result, err := eng.Rematch(ctx, snap, card)
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("  • Unlabelled entries: %d\n", result.Total) +
				fmt.Sprintf("  • Matched: %d\n", result.Matched) +
				fmt.Sprintf("  • Failed: %d", result.Failed)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Rematch Complete", summary))
			return nil
		},
	}

	cmd.Flags().String("card", "", "Only rematch this card")
	return cmd
}
