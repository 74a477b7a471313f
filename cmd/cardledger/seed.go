package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/cardledger/internal/cli"
	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by 'patterns seed'.
//
//	patterns:
//	  - merchant: 한국도로공사
//	    usage: 차량유지비
//	    card: "6902"
//	  - merchant: "^GS25 .+$"
//	    kind: regex
//	    usage: 소모품비
type seedFile struct {
	Patterns []seedEntry `yaml:"patterns"`
}

type seedEntry struct {
	Merchant string `yaml:"merchant"`
	Usage    string `yaml:"usage"`
	Kind     string `yaml:"kind"`
	Card     string `yaml:"card"`
	Industry string `yaml:"industry"`
	Priority int    `yaml:"priority"`
}

type seedReport struct {
	Created   int
	Updated   int
	Unchanged int
}

func patternsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Bulk load patterns from a YAML file",
		Long: `Load patterns from a YAML file. Seeding is repeatable: exact patterns that
already exist are relabelled when the usage changed, and rules already
present for the same expression and scope are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			entries, err := readSeedFile(file)
			_ = file.Close()
			if err != nil {
				return err
			}

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := seedPatterns(ctx, store, entries)
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("  • Created: %d\n", report.Created) +
				fmt.Sprintf("  • Updated: %d\n", report.Updated) +
				fmt.Sprintf("  • Unchanged: %d", report.Unchanged)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Patterns Seeded", summary))
			return nil
		},
	}
}

func readSeedFile(r io.Reader) ([]seedEntry, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return file.Patterns, nil
}

func seedPatterns(ctx context.Context, store service.PatternStore, entries []seedEntry) (seedReport, error) {
	var report seedReport

	for i, entry := range entries {
		kind := model.KindExact
		if entry.Kind != "" {
			k, err := model.ParsePatternKind(strings.ToLower(strings.TrimSpace(entry.Kind)))
			if err != nil {
				return report, fmt.Errorf("seed entry %d: %w", i+1, err)
			}
			kind = k
		}

		p := model.Pattern{
			MerchantKey:  strings.TrimSpace(entry.Merchant),
			UsageLabel:   strings.TrimSpace(entry.Usage),
			Kind:         kind,
			Scope:        model.CardScope(strings.TrimSpace(entry.Card)),
			IndustryCode: strings.TrimSpace(entry.Industry),
			Priority:     entry.Priority,
			CreatedBy:    model.CreatedByMigration,
			IsActive:     true,
		}

		var outcome model.UpsertOutcome
		var err error
		if kind == model.KindExact {
			outcome, err = seedExact(ctx, store, p)
		} else {
			outcome, err = seedRule(ctx, store, p)
		}
		if err != nil {
			return report, fmt.Errorf("seed entry %d (%s): %w", i+1, p.MerchantKey, err)
		}

		switch outcome {
		case model.OutcomeCreated:
			report.Created++
		case model.OutcomeUpdated:
			report.Updated++
		default:
			report.Unchanged++
		}
	}

	common.LogInfo("Seeded patterns", common.Fields{
		"created":   report.Created,
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
	})

	return report, nil
}

func seedExact(ctx context.Context, store service.PatternStore, p model.Pattern) (model.UpsertOutcome, error) {
	stored, outcome, err := store.FindOrCreate(ctx, p.MerchantKey, p.UsageLabel, p.Scope, p.CreatedBy)
	if err != nil {
		return outcome, err
	}
	if p.Priority == 0 || stored.Priority == p.Priority {
		return outcome, nil
	}

	stored.Priority = p.Priority
	if err := store.UpdatePattern(ctx, &stored); err != nil {
		return outcome, err
	}
	if outcome == model.OutcomeUnchanged {
		outcome = model.OutcomeUpdated
	}
	return outcome, nil
}

func seedRule(ctx context.Context, store service.PatternStore, p model.Pattern) (model.UpsertOutcome, error) {
	existing, err := store.ListPatterns(ctx, service.PatternFilter{
		Kind:       p.Kind,
		CardID:     p.Scope.CardID,
		GlobalOnly: p.Scope.IsGlobal(),
	})
	if err != nil {
		return model.OutcomeUnchanged, err
	}

	for _, candidate := range existing {
		if candidate.MerchantKey != p.MerchantKey || candidate.IndustryCode != p.IndustryCode {
			continue
		}
		if candidate.UsageLabel == p.UsageLabel && candidate.Priority == p.Priority {
			return model.OutcomeUnchanged, nil
		}
		candidate.UsageLabel = p.UsageLabel
		candidate.Priority = p.Priority
		if err := store.UpdatePattern(ctx, &candidate); err != nil {
			return model.OutcomeUnchanged, err
		}
		return model.OutcomeUpdated, nil
	}

	if err := store.CreatePattern(ctx, &p); err != nil {
		return model.OutcomeUnchanged, err
	}
	return model.OutcomeCreated, nil
}
