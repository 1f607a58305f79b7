package backtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

func TestGridCombinations(t *testing.T) {
	grid := Grid{
		{Name: "fast", Values: []float64{5, 10}},
		{Name: "slow", Values: []float64{20, 30, 40}},
	}

	combos := grid.Combinations()
	require.Len(t, combos, 6)
	assert.Equal(t, 6, grid.Size())

	// First combination follows range order
	assert.Equal(t, 5.0, combos[0]["fast"])
	assert.Equal(t, 20.0, combos[0]["slow"])

	// All combinations are distinct
	seen := make(map[string]bool)
	for _, c := range combos {
		key := fmt.Sprintf("%g/%g", c["fast"], c["slow"])
		assert.False(t, seen[key], "duplicate combination %s", key)
		seen[key] = true
	}
}

func TestParamSetCloneIsolation(t *testing.T) {
	original := ParamSet{"period": 14}
	clone := original.Clone()
	clone["period"] = 28

	assert.Equal(t, 14.0, original["period"])
}

// thresholdSignal buys when the close rises above the "buy_above" parameter
// and sells when it falls below "sell_below"
func thresholdSignal(bars []market.Bar, params ParamSet) []Action {
	actions := make([]Action, len(bars))
	for i, bar := range bars {
		switch {
		case bar.Close <= params.Get("buy_above", 0):
			actions[i] = ActionBuy
		case bar.Close >= params.Get("sell_below", 1e12):
			actions[i] = ActionSell
		}
	}
	return actions
}

func TestGridSearchEmptyGridFatal(t *testing.T) {
	gs := NewGridSearch(thresholdSignal, nil, Grid{}, market.TimeframeDaily)
	_, err := gs.Run(context.Background(), map[string][]market.Bar{
		"TEST": barsFromCloses([]float64{100, 101}),
	})
	require.Error(t, err)
}

func TestGridSearchNoDataFatal(t *testing.T) {
	grid := Grid{{Name: "buy_above", Values: []float64{100}}}
	gs := NewGridSearch(thresholdSignal, nil, grid, market.TimeframeDaily)
	_, err := gs.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestGridSearchRanksCombinations(t *testing.T) {
	// Oscillating series: combos with wider buy/sell spread earn more
	closes := []float64{100, 90, 100, 110, 90, 100, 110, 90, 100, 110}
	data := map[string][]market.Bar{"OSC": barsFromCloses(closes)}

	grid := Grid{
		{Name: "buy_above", Values: []float64{90, 95}},
		{Name: "sell_below", Values: []float64{110}},
	}

	gs := NewGridSearch(thresholdSignal, nil, grid, market.TimeframeDaily)
	gs.SetParallelism(2)

	report, err := gs.Run(context.Background(), data)
	require.NoError(t, err)

	require.NotEmpty(t, report.Results)
	assert.Equal(t, 1, report.Results[0].Rank)
	for i := 1; i < len(report.Results); i++ {
		assert.GreaterOrEqual(t, report.Results[i-1].Score, report.Results[i].Score)
		assert.Equal(t, i+1, report.Results[i].Rank)
	}
	assert.Equal(t, grid.Size()*len(data), report.TotalRuns)
}

func TestGridSearchValidationRejects(t *testing.T) {
	grid := Grid{
		{Name: "fast", Values: []float64{5, 30}},
		{Name: "slow", Values: []float64{20}},
	}
	validate := func(ps ParamSet) error {
		if ps["fast"] >= ps["slow"] {
			return fmt.Errorf("fast %g must be below slow %g", ps["fast"], ps["slow"])
		}
		return nil
	}

	holdSignal := func(bars []market.Bar, params ParamSet) []Action {
		return make([]Action, len(bars))
	}

	gs := NewGridSearch(holdSignal, validate, grid, market.TimeframeDaily)
	report, err := gs.Run(context.Background(), map[string][]market.Bar{
		"TEST": barsFromCloses([]float64{100, 101, 102}),
	})
	require.NoError(t, err)

	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Reason, "must be below")
}

func TestGridSearchNoTradeCategory(t *testing.T) {
	holdSignal := func(bars []market.Bar, params ParamSet) []Action {
		return make([]Action, len(bars))
	}
	grid := Grid{{Name: "period", Values: []float64{5, 10}}}

	gs := NewGridSearch(holdSignal, nil, grid, market.TimeframeDaily)
	report, err := gs.Run(context.Background(), map[string][]market.Bar{
		"TEST": barsFromCloses([]float64{100, 101, 102}),
	})
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	assert.Len(t, report.NoTrade, 2)
}

func TestDegenerateMetricNormalizesToHalf(t *testing.T) {
	results := []CombinationResult{
		{WinRate: 50, MeanReturnPct: 10, MedianReturnPct: 10, PctPositiveSymbols: 100},
		{WinRate: 50, MeanReturnPct: 20, MedianReturnPct: 20, PctPositiveSymbols: 100},
	}

	scoreCombinations(results)

	// WinRate and PctPositiveSymbols are degenerate (max == min) and must
	// contribute exactly 0.5 for both combinations
	base := weightWinRate*0.5 + weightPositiveSymbols*0.5
	assert.InDelta(t, base+weightMeanReturn*0+weightMedianReturn*0, results[0].Score, 1e-9)
	assert.InDelta(t, base+weightMeanReturn*1+weightMedianReturn*1, results[1].Score, 1e-9)
}

func TestRulesFromParams(t *testing.T) {
	rules := RulesFromParams(ParamSet{
		"take_profit_pct":   20,
		"trailing_stop_pct": 10,
	})
	assert.Equal(t, 20.0, rules.TakeProfitPct)
	assert.Equal(t, 0.0, rules.StopLossPct)
	assert.Equal(t, 10.0, rules.TrailingStopPct)
}
