// Backtest statistics aggregation
package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

// DefaultInitialCapital seeds the equity curve when the caller does not care
// about absolute dollar amounts. All derived statistics are percentage-based,
// so the choice of capital does not affect them.
const DefaultInitialCapital = 10000.0

// Stats holds the derived statistics for a closed-trade list.
// Zero trades produce the zero value for every field so that downstream
// sorting and comparisons stay total - never NaN.
type Stats struct {
	NumTrades       int     `json:"num_trades"`
	NumWins         int     `json:"num_wins"`
	NumLosses       int     `json:"num_losses"`
	WinRate         float64 `json:"win_rate"`          // wins/trades*100
	TotalReturnPct  float64 `json:"total_return_pct"`  // compounded over trades
	AvgReturnPct    float64 `json:"avg_return_pct"`    // mean per-trade return
	MedianReturnPct float64 `json:"median_return_pct"` // median per-trade return
	Sharpe          float64 `json:"sharpe"`            // annualized mean/std of trade returns
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`  // worst peak-to-trough of equity curve
}

// ComputeStats derives statistics from a closed-trade list. The equity curve
// is built by sequentially compounding trade returns on top of
// initialCapital; the annualization factor for the Sharpe ratio follows the
// timeframe.
func ComputeStats(trades []Trade, initialCapital float64, tf market.Timeframe) Stats {
	var stats Stats
	if len(trades) == 0 {
		return stats
	}
	if initialCapital <= 0 {
		initialCapital = DefaultInitialCapital
	}

	stats.NumTrades = len(trades)
	returns := make([]float64, len(trades))

	equity := initialCapital
	peak := initialCapital
	var sumReturns float64

	for i, trade := range trades {
		returns[i] = trade.ReturnPct
		sumReturns += trade.ReturnPct
		if trade.IsWin {
			stats.NumWins++
		} else {
			stats.NumLosses++
		}

		equity *= 1 + trade.ReturnPct/100
		if equity > peak {
			peak = equity
		}
		drawdownPct := (peak - equity) / peak * 100
		if drawdownPct > stats.MaxDrawdownPct {
			stats.MaxDrawdownPct = drawdownPct
		}
	}

	stats.WinRate = float64(stats.NumWins) / float64(stats.NumTrades) * 100
	stats.TotalReturnPct = (equity - initialCapital) / initialCapital * 100
	stats.AvgReturnPct = sumReturns / float64(len(returns))
	stats.MedianReturnPct = median(returns)
	stats.Sharpe = sharpe(returns, stats.AvgReturnPct, tf)

	return stats
}

// sharpe computes the annualized Sharpe ratio over per-trade returns.
// Zero variance yields 0, not NaN.
func sharpe(returns []float64, mean float64, tf market.Timeframe) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sumSquaredDiff float64
	for _, r := range returns {
		diff := r - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(returns))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(tf.AnnualizationFactor())
}

// median returns the middle value of a copied, sorted slice
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// ============================================================================
// REPORT GENERATION
// ============================================================================

// RenderReport generates a human-readable summary of a backtest result.
// Display only - the core owns no persisted format.
func RenderReport(result *Result) string {
	var b strings.Builder
	s := result.Stats

	fmt.Fprintf(&b, "================================================================================\n")
	fmt.Fprintf(&b, "BACKTEST RESULT: %s\n", result.Symbol)
	fmt.Fprintf(&b, "================================================================================\n\n")
	fmt.Fprintf(&b, "Trades:           %d (%d wins / %d losses)\n", s.NumTrades, s.NumWins, s.NumLosses)
	fmt.Fprintf(&b, "Win Rate:         %.2f%%\n", s.WinRate)
	fmt.Fprintf(&b, "Total Return:     %.2f%%\n", s.TotalReturnPct)
	fmt.Fprintf(&b, "Avg Return:       %.2f%%\n", s.AvgReturnPct)
	fmt.Fprintf(&b, "Median Return:    %.2f%%\n", s.MedianReturnPct)
	fmt.Fprintf(&b, "Sharpe:           %.2f\n", s.Sharpe)
	fmt.Fprintf(&b, "Max Drawdown:     %.2f%%\n", s.MaxDrawdownPct)

	if result.OpenPosition != nil {
		fmt.Fprintf(&b, "\nOpen position since %s at %.2f (excluded from stats)\n",
			result.OpenPosition.EntryDate.Format("2006-01-02"),
			result.OpenPosition.EntryPrice)
	}

	if len(result.Trades) > 0 {
		fmt.Fprintf(&b, "\nTRADES\n------\n")
		for _, t := range result.Trades {
			fmt.Fprintf(&b, "%s -> %s  %8.2f -> %8.2f  %+7.2f%%  %s\n",
				t.EntryDate.Format("2006-01-02"),
				t.ExitDate.Format("2006-01-02"),
				t.EntryPrice, t.ExitPrice, t.ReturnPct, t.ExitReason)
		}
	}

	return b.String()
}
