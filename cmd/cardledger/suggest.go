package main

import (
	"fmt"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/spf13/cobra"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <merchant>",
		Short: "Suggest usages from similar merchant patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSuggestions(args[0], eng.Suggest(snap, args[0], card)))
			return nil
		},
	}

	cmd.Flags().String("card", "", "Rank this card's patterns first")
	return cmd
}
