package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/cardledger/internal/model"
)

// RenderBatchSummary renders the outcome of one classified batch.
func RenderBatchSummary(result *model.BatchResult, reviewPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Card: %s\n", CardIcon, result.CardID)
	fmt.Fprintf(&b, "  • Accepted: %d\n", len(result.Accepted))
	fmt.Fprintf(&b, "  • Matched: %d\n", result.Matched())
	fmt.Fprintf(&b, "  • Unmatched: %d\n", result.Unmatched)
	fmt.Fprintf(&b, "  • Duplicates skipped: %d\n", result.Duplicates)
	if result.DryRun {
		b.WriteString(SubtleStyle.Render("  Dry run: nothing was written to the ledger"))
	} else {
		fmt.Fprintf(&b, "  • Committed: %d", result.Committed)
	}
	if reviewPath != "" {
		fmt.Fprintf(&b, "\n\n%s", FormatInfo("Review unmatched rows in "+reviewPath))
	}

	title := "Batch Classified"
	if result.DryRun {
		title = "Batch Preview"
	}
	return RenderBox(title, b.String())
}

// RenderLearnReport renders the outcome of learning from a review file.
func RenderLearnReport(report model.LearnReport) string {
	summary := fmt.Sprintf("  • Created: %d\n", report.Created) +
		fmt.Sprintf("  • Updated: %d\n", report.Updated) +
		fmt.Sprintf("  • Unchanged: %d\n", report.Unchanged) +
		fmt.Sprintf("  • Skipped rows: %d", report.Skipped)

	if len(report.Applied) > 0 {
		rows := make([][]string, 0, len(report.Applied))
		for _, pair := range report.Applied {
			rows = append(rows, []string{pair.MerchantKey, pair.UsageLabel, pair.Scope.String()})
		}
		summary += "\n\n" + RenderTable([]string{"Merchant", "Usage", "Scope"}, rows)
	}
	return RenderBox("Patterns Learned", summary)
}

// RenderPatternTable renders patterns one per row.
func RenderPatternTable(patterns []model.Pattern) string {
	rows := make([][]string, 0, len(patterns))
	for _, p := range patterns {
		active := SuccessIcon
		if !p.IsActive {
			active = ErrorIcon
		}
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			string(p.Kind),
			p.MerchantKey,
			p.UsageLabel,
			p.Scope.String(),
			p.IndustryCode,
			strconv.Itoa(p.Priority),
			strconv.Itoa(p.UseCount),
			active,
		})
	}
	return RenderTable(
		[]string{"ID", "Kind", "Merchant", "Usage", "Scope", "Industry", "Priority", "Uses", "Active"},
		rows,
	)
}

// RenderPatternDetail renders every field of a single pattern.
func RenderPatternDetail(p model.Pattern) string {
	content := fmt.Sprintf("Kind: %s\n", p.Kind) +
		fmt.Sprintf("Merchant: %s\n", p.MerchantKey) +
		fmt.Sprintf("Usage: %s\n", p.UsageLabel) +
		fmt.Sprintf("Scope: %s\n", p.Scope) +
		fmt.Sprintf("Priority: %d\n", p.Priority) +
		fmt.Sprintf("Uses: %d\n", p.UseCount) +
		fmt.Sprintf("Active: %t\n", p.IsActive) +
		fmt.Sprintf("Created by: %s", p.CreatedBy)
	if p.IndustryCode != "" {
		content += fmt.Sprintf("\nIndustry: %s", p.IndustryCode)
	}
	if !p.CreatedAt.IsZero() {
		content += fmt.Sprintf("\nCreated: %s", p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return RenderBox(fmt.Sprintf("Pattern #%d", p.ID), content)
}

// RenderPatternStats renders pattern counts by kind and scope.
func RenderPatternStats(stats model.PatternStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Total: %d\n", ChartIcon, stats.Total)

	b.WriteString("\nBy kind:\n")
	for _, kind := range []model.PatternKind{model.KindExact, model.KindContains, model.KindRegex} {
		fmt.Fprintf(&b, "  • %s: %d\n", kind, stats.ByKind[kind])
	}

	b.WriteString("\nBy scope:")
	scopes := make([]string, 0, len(stats.ByScope))
	for scope := range stats.ByScope {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		fmt.Fprintf(&b, "\n  • %s: %d", scope, stats.ByScope[scope])
	}
	return RenderBox("Pattern Statistics", b.String())
}

// RenderSuggestions renders ranked pattern candidates for a merchant.
func RenderSuggestions(merchant string, suggestions []model.ScoredPattern) string {
	if len(suggestions) == 0 {
		return FormatInfo(fmt.Sprintf("No similar patterns for %q", merchant))
	}

	rows := make([][]string, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, []string{
			strconv.Itoa(s.Score),
			s.Pattern.MerchantKey,
			s.Pattern.UsageLabel,
			s.Pattern.Scope.String(),
		})
	}
	return TitleStyle.Render("Suggestions for "+merchant) + "\n" +
		RenderTable([]string{"Score", "Merchant", "Usage", "Scope"}, rows)
}

// RenderLedgerEntries renders ledger rows awaiting review.
func RenderLedgerEntries(entries []model.LedgerEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			e.Transaction.Date.Format(model.DayLayout),
			e.Transaction.CardID,
			e.Transaction.RawMerchantName,
			strconv.FormatInt(e.Transaction.Amount, 10),
			e.Transaction.IndustryCode,
		})
	}
	return RenderTable([]string{"ID", "Date", "Card", "Merchant", "Amount", "Industry"}, rows)
}
