package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Fee Reinvestment Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Totals
	sb.WriteString(fmt.Sprintf("## Totals (last %d passes)\n\n", r.Totals.Passes))
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Passes | %d |\n", r.Totals.Passes))
	sb.WriteString(fmt.Sprintf("| Wallets Processed | %d |\n", r.Totals.WalletsProcessed))
	sb.WriteString(fmt.Sprintf("| Claims Confirmed | %d |\n", r.Totals.Claimed))
	sb.WriteString(fmt.Sprintf("| Wallets Bought | %d |\n", r.Totals.Bought))
	sb.WriteString(fmt.Sprintf("| Errors | %d |\n", r.Totals.Errors))
	sb.WriteString(fmt.Sprintf("| Claimed SOL | %s |\n", r.Totals.TotalClaimedSOL.StringFixed(9)))
	sb.WriteString(fmt.Sprintf("| Transferred SOL | %s |\n", r.Totals.TotalTransferredSOL.StringFixed(9)))
	sb.WriteString("\n")

	// Runs
	sb.WriteString("## Recent Passes\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Pass | Started | Mode | Wallets | Claimed | Bought | NoFees | Errors | Claimed SOL | Duration | Collector |\n")
		sb.WriteString("|------|---------|------|---------|---------|--------|--------|--------|-------------|----------|-----------|\n")
		for _, run := range r.Runs {
			collector := "-"
			if run.CollectorOK != nil {
				collector = "FAIL"
				if *run.CollectorOK {
					collector = "OK"
				}
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %d | %d | %d | %s | %dms | %s |\n",
				shortID(run.PassID), run.StartedAt.Format(time.RFC3339), run.Mode,
				run.Wallets, run.Claimed, run.Bought, run.NoFees, run.Errors,
				run.ClaimedSOL.StringFixed(9), run.DurationMs, collector))
		}
	} else {
		sb.WriteString("No passes recorded.\n")
	}
	sb.WriteString("\n")

	// Latest pass states
	if r.LatestPassID != "" {
		sb.WriteString(fmt.Sprintf("## Latest Pass States (%s)\n\n", shortID(r.LatestPassID)))
		sb.WriteString("| State | Wallets |\n")
		sb.WriteString("|-------|---------|\n")
		for _, s := range r.LatestStates {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", s.State, s.Count))
		}
		sb.WriteString("\n")
	}

	// Activity
	sb.WriteString("## Activity\n\n")
	if len(r.Activity) > 0 {
		sb.WriteString("| Type | Records | SOL |\n")
		sb.WriteString("|------|---------|-----|\n")
		for _, a := range r.Activity {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", a.Type, a.Count, a.AmountSOL.StringFixed(9)))
		}
	} else {
		sb.WriteString("No activity recorded.\n")
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
