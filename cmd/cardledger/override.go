package main

import (
	"fmt"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/engine"
	"github.com/spf13/cobra"
)

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override <entry-id> <usage>",
		Short: "Set the usage of a ledger entry by hand",
		Long: `Set the usage label of one ledger entry. With --save-pattern the label is
also learned for the entry's merchant; add --per-card to limit that pattern to
the entry's card.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			save, _ := cmd.Flags().GetBool("save-pattern")
			perCard, _ := cmd.Flags().GetBool("per-card")
			if perCard && !save {
				return common.NewUserError("--per-card only applies together with --save-pattern", nil)
			}

			store, cfg, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng, _ := newEngine(store, cfg, nil)
			entry, err := eng.Override(ctx, args[0], args[1], engine.OverrideOptions{
				SavePattern: save,
				PerCard:     perCard,
			})
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("%s %s → %s", entry.Transaction.Date.Format("2006-01-02"),
				entry.Transaction.RawMerchantName, entry.UsageLabel)
			switch {
			case save && perCard:
				msg += fmt.Sprintf(" (saved as pattern for card %s)", entry.Transaction.CardID)
			case save:
				msg += " (saved as pattern)"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
			return nil
		},
	}

	cmd.Flags().Bool("save-pattern", false, "Also learn the usage as a pattern for this merchant")
	cmd.Flags().Bool("per-card", false, "Scope the saved pattern to the entry's card")
	return cmd
}
