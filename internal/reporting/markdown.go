package reporting

import (
	"fmt"
	"strings"
	"time"
)

// SummaryMarkdown renders a period digest as Markdown for notifications.
func SummaryMarkdown(s *PeriodSummary) string {
	var sb strings.Builder

	title := strings.ToUpper(string(s.Period[:1])) + string(s.Period[1:])
	sb.WriteString(fmt.Sprintf("# %s Commission Summary\n\n", title))
	sb.WriteString(fmt.Sprintf("%s to %s\n\n",
		s.DateRange.Start.UTC().Format(time.DateOnly),
		s.DateRange.End.UTC().Format(time.DateOnly)))

	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Sales | %d |\n", s.Totals.TransactionCount))
	sb.WriteString(fmt.Sprintf("| Volume | %s SOL |\n", s.Totals.VolumeSOL))
	sb.WriteString(fmt.Sprintf("| Commissions | %s SOL |\n", s.Totals.CommissionsSOL))
	sb.WriteString(fmt.Sprintf("| Effective rate | %s%% |\n", s.Totals.EffectiveRatePct))
	if s.Totals.CommissionsUSD != "" {
		sb.WriteString(fmt.Sprintf("| Commissions (USD, %s) | $%s |\n", s.Totals.PriceOrigin, s.Totals.CommissionsUSD))
	}
	sb.WriteString("\n")

	if len(s.TopItems) == 0 {
		sb.WriteString("No completed sales in this period.\n")
		return sb.String()
	}

	sb.WriteString("## Top Items\n\n")
	sb.WriteString("| Item | Sales | Commission (SOL) |\n")
	sb.WriteString("|------|-------|------------------|\n")
	for _, b := range s.TopItems {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", escapeMarkdown(b.Key), b.Count, b.CommissionSOL))
	}
	return sb.String()
}

func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
