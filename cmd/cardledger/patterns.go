package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/service"
	"github.com/spf13/cobra"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patterns",
		Aliases: []string{"pattern"},
		Short:   "Manage merchant patterns",
		Long: `Manage the merchant patterns used to label card charges.

Exact patterns match a merchant name as written on the statement. Contains and
regex patterns catch name variants such as store numbers. Patterns scoped to a
card win over common patterns for that card.`,
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsShowCmd())
	cmd.AddCommand(patternsCreateCmd())
	cmd.AddCommand(patternsUpdateCmd())
	cmd.AddCommand(patternsDeleteCmd())
	cmd.AddCommand(patternsStatsCmd())
	cmd.AddCommand(patternsSeedCmd())

	return cmd
}

func patternsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			card, _ := cmd.Flags().GetString("card")
			kind, _ := cmd.Flags().GetString("kind")
			globalOnly, _ := cmd.Flags().GetBool("common")
			all, _ := cmd.Flags().GetBool("all")

			filter := service.PatternFilter{
				CardID:          card,
				GlobalOnly:      globalOnly,
				IncludeInactive: all,
			}
			if kind != "" {
				k, err := model.ParsePatternKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			patterns, err := store.ListPatterns(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list patterns: %w", err)
			}

			if len(patterns) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No patterns found"))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderPatternTable(patterns))
			return nil
		},
	}

	cmd.Flags().String("card", "", "Only patterns scoped to this card")
	cmd.Flags().String("kind", "", "Only patterns of this kind (exact, contains, regex)")
	cmd.Flags().Bool("common", false, "Only patterns that apply to every card")
	cmd.Flags().Bool("all", false, "Include inactive patterns")
	return cmd
}

func patternsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show pattern details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parsePatternID(args[0])
			if err != nil {
				return err
			}

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.GetPattern(ctx, id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderPatternDetail(*p))
			return nil
		},
	}
}

func patternsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <merchant> <usage>",
		Short: "Create a pattern",
		Long: `Create a pattern mapping a merchant to a usage.

For --kind regex the merchant argument is the expression; it must match the
whole merchant name. For --kind contains it is the fragment to look for.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, _ := cmd.Flags().GetString("kind")
			card, _ := cmd.Flags().GetString("card")
			industry, _ := cmd.Flags().GetString("industry")
			priority, _ := cmd.Flags().GetInt("priority")

			k, err := model.ParsePatternKind(kind)
			if err != nil {
				return err
			}

			p := &model.Pattern{
				MerchantKey:  strings.TrimSpace(args[0]),
				UsageLabel:   strings.TrimSpace(args[1]),
				Kind:         k,
				Scope:        model.CardScope(strings.TrimSpace(card)),
				IndustryCode: strings.TrimSpace(industry),
				Priority:     priority,
				CreatedBy:    model.CreatedByAdmin,
				IsActive:     true,
			}

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreatePattern(ctx, p); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created pattern #%d", p.ID)))
			return nil
		},
	}

	cmd.Flags().String("kind", string(model.KindExact), "Pattern kind (exact, contains, regex)")
	cmd.Flags().String("card", "", "Restrict the pattern to this card")
	cmd.Flags().String("industry", "", "Only match charges whose industry contains this text (contains/regex)")
	cmd.Flags().Int("priority", 0, "Priority among patterns of the same kind")
	return cmd
}

func patternsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a pattern's usage, priority or status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parsePatternID(args[0])
			if err != nil {
				return err
			}

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.GetPattern(ctx, id)
			if err != nil {
				return err
			}

			changed := false
			if cmd.Flags().Changed("usage") {
				p.UsageLabel, _ = cmd.Flags().GetString("usage")
				p.UsageLabel = strings.TrimSpace(p.UsageLabel)
				changed = true
			}
			if cmd.Flags().Changed("priority") {
				p.Priority, _ = cmd.Flags().GetInt("priority")
				changed = true
			}
			if cmd.Flags().Changed("industry") {
				p.IndustryCode, _ = cmd.Flags().GetString("industry")
				p.IndustryCode = strings.TrimSpace(p.IndustryCode)
				changed = true
			}
			if cmd.Flags().Changed("active") {
				p.IsActive, _ = cmd.Flags().GetBool("active")
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to update; pass --usage, --priority, --industry or --active")
			}

			if err := store.UpdatePattern(ctx, p); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated pattern #%d", p.ID)))
			return nil
		},
	}

	cmd.Flags().String("usage", "", "New usage label")
	cmd.Flags().Int("priority", 0, "New priority")
	cmd.Flags().String("industry", "", "New industry condition")
	cmd.Flags().Bool("active", true, "Activate or deactivate the pattern")
	return cmd
}

func patternsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pattern",
		Long: `Delete a pattern. Ledger entries it already labelled keep their usage.
Use 'patterns update <id> --active=false' to disable a pattern without losing it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parsePatternID(args[0])
			if err != nil {
				return err
			}

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeletePattern(ctx, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted pattern #%d", id)))
			return nil
		},
	}
}

func patternsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pattern counts by kind and scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.PatternStats(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderPatternStats(*stats))
			return nil
		},
	}
}

func parsePatternID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid pattern ID: %s", arg)
	}
	return id, nil
}
