// Optimizer report generation
package backtest

import (
	"fmt"
	"sort"
	"strings"
)

// formatParams renders a parameter set as a stable name=value list
func formatParams(ps ParamSet) string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, ps[name])
	}
	return strings.Join(parts, " ")
}

// RenderGridReport generates a human-readable grid search summary, top
// combinations first.
func RenderGridReport(report *GridReport, topN int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "================================================================================\n")
	fmt.Fprintf(&b, "GRID SEARCH\n")
	fmt.Fprintf(&b, "================================================================================\n\n")
	fmt.Fprintf(&b, "Runs:             %d\n", report.TotalRuns)
	fmt.Fprintf(&b, "Scored:           %d\n", len(report.Results))
	fmt.Fprintf(&b, "No-trade:         %d\n", len(report.NoTrade))
	fmt.Fprintf(&b, "Rejected:         %d\n", len(report.Rejected))
	fmt.Fprintf(&b, "Duration:         %s\n\n", report.Duration.Round(1e6))

	if len(report.Results) > 0 {
		b.WriteString("RANK  SCORE   WINRATE  MEAN%    MEDIAN%  TRADES  PARAMS\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for i, r := range report.Results {
			if topN > 0 && i >= topN {
				break
			}
			fmt.Fprintf(&b, "%4d  %.4f  %6.2f   %+7.2f  %+7.2f  %6d  %s\n",
				r.Rank, r.Score, r.WinRate, r.MeanReturnPct, r.MedianReturnPct,
				r.NumTrades, formatParams(r.Params))
		}
		b.WriteString("\n")
	}

	if len(report.Rejected) > 0 {
		b.WriteString("REJECTED\n--------\n")
		for _, r := range report.Rejected {
			fmt.Fprintf(&b, "%s: %s\n", formatParams(r.Params), r.Reason)
		}
	}
	return b.String()
}

// RenderWalkForwardReport generates a human-readable walk-forward summary:
// per-window outcomes plus the stability ranking.
func RenderWalkForwardReport(report *WalkForwardReport, topN int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "================================================================================\n")
	fmt.Fprintf(&b, "WALK-FORWARD: %s\n", report.Symbol)
	fmt.Fprintf(&b, "================================================================================\n\n")
	fmt.Fprintf(&b, "Windows:          %d\n", len(report.Windows))
	fmt.Fprintf(&b, "Stable combos:    %d\n", len(report.Stability))
	fmt.Fprintf(&b, "No-trade combos:  %d\n", len(report.NoTrade))
	fmt.Fprintf(&b, "Duration:         %s\n\n", report.Duration.Round(1e6))

	if len(report.Windows) > 0 {
		b.WriteString("WINDOW  TRAIN%   TEST%    BEST PARAMS\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for _, w := range report.Windows {
			fmt.Fprintf(&b, "%6d  %+7.2f  %+7.2f  %s\n",
				w.Window.ID, w.TrainStats.TotalReturnPct, w.TestStats.TotalReturnPct,
				formatParams(w.BestParams))
		}
		b.WriteString("\n")
	}

	if len(report.Stability) > 0 {
		b.WriteString("RANK  SCORE   MEDIAN%  MIN%     STD%    OVERFIT  PARAMS\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for i, s := range report.Stability {
			if topN > 0 && i >= topN {
				break
			}
			fmt.Fprintf(&b, "%4d  %.4f  %+7.2f  %+7.2f  %6.2f  %+7.2f  %s\n",
				s.Rank, s.Score, s.TestMedianPct, s.TestMinPct, s.TestStdPct,
				s.OverfitDegree, formatParams(s.Params))
		}
	}
	return b.String()
}
