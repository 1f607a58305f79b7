package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

func tradeWithReturn(returnPct float64) Trade {
	entry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Trade{
		EntryDate:  entry,
		EntryPrice: 100,
		ExitDate:   entry.AddDate(0, 0, 5),
		ExitPrice:  100 * (1 + returnPct/100),
		ReturnPct:  returnPct,
		IsWin:      returnPct > 0,
		ExitReason: ExitSignal,
	}
}

func TestComputeStatsZeroTrades(t *testing.T) {
	stats := ComputeStats(nil, DefaultInitialCapital, market.TimeframeDaily)

	// Every derived statistic is the literal value 0
	assert.Equal(t, Stats{}, stats)
}

func TestComputeStatsBasic(t *testing.T) {
	trades := []Trade{
		tradeWithReturn(10),
		tradeWithReturn(-5),
		tradeWithReturn(20),
		tradeWithReturn(-10),
	}

	stats := ComputeStats(trades, DefaultInitialCapital, market.TimeframeDaily)

	assert.Equal(t, 4, stats.NumTrades)
	assert.Equal(t, 2, stats.NumWins)
	assert.Equal(t, 2, stats.NumLosses)
	assert.InDelta(t, 50.0, stats.WinRate, 1e-9)
	assert.GreaterOrEqual(t, stats.WinRate, 0.0)
	assert.LessOrEqual(t, stats.WinRate, 100.0)

	// 1.10 * 0.95 * 1.20 * 0.90 = 1.1286
	assert.InDelta(t, 12.86, stats.TotalReturnPct, 0.01)
	assert.InDelta(t, 3.75, stats.AvgReturnPct, 1e-9)
	assert.InDelta(t, 2.5, stats.MedianReturnPct, 1e-9)
}

func TestComputeStatsIdenticalReturnsSharpeZero(t *testing.T) {
	trades := []Trade{
		tradeWithReturn(5),
		tradeWithReturn(5),
		tradeWithReturn(5),
	}

	stats := ComputeStats(trades, DefaultInitialCapital, market.TimeframeDaily)

	// Zero variance must give Sharpe 0, not NaN
	assert.Equal(t, 0.0, stats.Sharpe)
	assert.InDelta(t, 100.0, stats.WinRate, 1e-9)
}

func TestComputeStatsMaxDrawdown(t *testing.T) {
	// Equity: 10000 -> 12000 -> 9600 -> 10560
	trades := []Trade{
		tradeWithReturn(20),
		tradeWithReturn(-20),
		tradeWithReturn(10),
	}

	stats := ComputeStats(trades, DefaultInitialCapital, market.TimeframeDaily)

	// Peak 12000, trough 9600: 20% drawdown
	assert.InDelta(t, 20.0, stats.MaxDrawdownPct, 1e-9)
}

func TestComputeStatsSharpeSign(t *testing.T) {
	winning := []Trade{tradeWithReturn(5), tradeWithReturn(10), tradeWithReturn(8)}
	losing := []Trade{tradeWithReturn(-5), tradeWithReturn(-10), tradeWithReturn(-8)}

	winStats := ComputeStats(winning, DefaultInitialCapital, market.TimeframeDaily)
	loseStats := ComputeStats(losing, DefaultInitialCapital, market.TimeframeDaily)

	assert.Greater(t, winStats.Sharpe, 0.0)
	assert.Less(t, loseStats.Sharpe, 0.0)
}

func TestComputeStatsWeeklyAnnualization(t *testing.T) {
	trades := []Trade{tradeWithReturn(5), tradeWithReturn(10), tradeWithReturn(-2)}

	daily := ComputeStats(trades, DefaultInitialCapital, market.TimeframeDaily)
	weekly := ComputeStats(trades, DefaultInitialCapital, market.TimeframeWeekly)

	// Same trades, smaller annualization factor for weekly bars
	require.NotZero(t, daily.Sharpe)
	assert.Less(t, weekly.Sharpe, daily.Sharpe)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}

func TestRenderReport(t *testing.T) {
	result := &Result{
		Symbol: "AAPL",
		Trades: []Trade{tradeWithReturn(12)},
	}
	result.Stats = ComputeStats(result.Trades, DefaultInitialCapital, market.TimeframeDaily)

	report := RenderReport(result)
	assert.Contains(t, report, "AAPL")
	assert.Contains(t, report, "Win Rate")
	assert.Contains(t, report, "signal")
}
