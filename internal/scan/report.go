package scan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ksk-taka/stock-prediction-sub003/internal/pattern"
)

// stageOrder ranks maturity for report sorting: breakout first, forming last
var stageOrder = map[pattern.Stage]int{
	pattern.StageBreakout: 0,
	pattern.StageReady:    1,
	pattern.StageForming:  2,
}

// sortResults orders by stage maturity, then shallower handle pullback,
// then symbol, so repeated scans over the same data produce identical output
func sortResults(results []SymbolResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Pattern, results[j].Pattern
		if stageOrder[a.Stage] != stageOrder[b.Stage] {
			return stageOrder[a.Stage] < stageOrder[b.Stage]
		}
		if a.HandlePullbackPct != b.HandlePullbackPct {
			return a.HandlePullbackPct < b.HandlePullbackPct
		}
		return results[i].Symbol < results[j].Symbol
	})
}

// FilterStage returns the results at the given maturity stage, in report order.
func (r *Report) FilterStage(stage pattern.Stage) []SymbolResult {
	var out []SymbolResult
	for _, res := range r.Results {
		if res.Pattern != nil && res.Pattern.Stage == stage {
			out = append(out, res)
		}
	}
	return out
}

// JoinExternal attaches externally computed per-symbol metrics (fundamental
// scores, liquidity figures) to matching results. Symbols absent from the
// metrics map are left untouched.
func (r *Report) JoinExternal(external map[string]map[string]float64) {
	for i := range r.Results {
		if m, ok := external[r.Results[i].Symbol]; ok {
			r.Results[i].External = m
		}
	}
}

// RenderText formats the report for terminal display.
func RenderText(r *Report) string {
	var b strings.Builder

	b.WriteString("=======================================\n")
	b.WriteString("         CUP-WITH-HANDLE SCAN\n")
	b.WriteString("=======================================\n")
	fmt.Fprintf(&b, "Scan ID:       %s\n", r.ID)
	fmt.Fprintf(&b, "Symbols:       %d scanned, %d hits, %d failed\n",
		r.TotalSymbols, len(r.Results), len(r.Failures))
	fmt.Fprintf(&b, "Duration:      %s\n\n", r.Duration.Round(1e6))

	if len(r.Results) > 0 {
		b.WriteString("SYMBOL      STAGE      DEPTH%   HANDLE%   BREAKOUT\n")
		b.WriteString("---------------------------------------------------\n")
		for _, res := range r.Results {
			p := res.Pattern
			fmt.Fprintf(&b, "%-10s  %-9s  %6.2f   %6.2f   %8.2f\n",
				res.Symbol, p.Stage, p.CupDepthPct, p.HandlePullbackPct, p.BreakoutPrice)
		}
		b.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		b.WriteString("FAILURES\n")
		b.WriteString("--------\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "%-10s  %s\n", f.Symbol, f.Reason)
		}
	}
	return b.String()
}
