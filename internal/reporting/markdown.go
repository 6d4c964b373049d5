package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Run Report: %s\n\n", r.Strategy))
	sb.WriteString(fmt.Sprintf("Run: %s", r.RunID))
	if r.Mode != "" {
		sb.WriteString(fmt.Sprintf(" | Mode: %s", r.Mode))
	}
	sb.WriteString(fmt.Sprintf(" | Status: %s\n\n", r.Status))
	sb.WriteString(fmt.Sprintf("Generated: %s | Clock: %s\n\n",
		r.GeneratedAt.Format(time.RFC3339), r.Clock.Format(time.RFC3339)))

	// Totals
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Positions | %d |\n", r.Totals.Positions))
	sb.WriteString(fmt.Sprintf("| Open | %d |\n", r.Totals.OpenPositions))
	sb.WriteString(fmt.Sprintf("| Closed | %d |\n", r.Totals.ClosedPositions))
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", r.Totals.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", r.Totals.Losses))
	sb.WriteString(fmt.Sprintf("| Realized PnL | %s |\n", r.Totals.RealizedPnL.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Unrealized PnL | %s |\n", r.Totals.UnrealizedPnL.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Total PnL | %s |\n", r.Totals.TotalPnL.StringFixed(2)))
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Leg | Seq | Trigger | Contract | Side | Lots | Entry | Entry Px | Exit | Exit Px | Status | PnL |\n")
		sb.WriteString("|-----|-----|---------|----------|------|------|-------|----------|------|---------|--------|-----|\n")
		for _, t := range r.Trades {
			exitTime := "-"
			if t.ExitTime != nil {
				exitTime = t.ExitTime.Format("15:04:05")
			}
			exitPrice := "-"
			if t.ExitPrice != nil {
				exitPrice = t.ExitPrice.StringFixed(2)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %d | %s | %s | %s | %s | %s | %s |\n",
				t.LegID, t.Sequence, t.Trigger, t.Contract, t.Side, t.Lots,
				t.EntryTime.Format("15:04:05"), t.EntryPrice.StringFixed(2),
				exitTime, exitPrice, t.Status, t.PnL.StringFixed(2)))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Re-entries
	if len(r.Reentries) > 0 {
		sb.WriteString("## Re-entries\n\n")
		sb.WriteString("| Leg | Trigger | Used |\n")
		sb.WriteString("|-----|---------|------|\n")
		for _, re := range r.Reentries {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", re.LegID, re.Trigger, re.Used))
		}
		sb.WriteString("\n")
	}

	// Skipped legs
	if len(r.Skips) > 0 {
		sb.WriteString("## Skipped Legs\n\n")
		for _, s := range r.Skips {
			sb.WriteString(fmt.Sprintf("- %s at %s: %s\n", s.LegID, s.At.Format("15:04:05"), s.Note))
		}
		sb.WriteString("\n")
	}

	// Deferred entries
	if len(r.Deferrals) > 0 {
		sb.WriteString("## Deferred Entries\n\n")
		for _, d := range r.Deferrals {
			sb.WriteString(fmt.Sprintf("- %s at %s: %s\n", d.LegID, d.At.Format("15:04:05"), d.Note))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
