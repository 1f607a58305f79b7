package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/internal/pattern"
	"github.com/ksk-taka/stock-prediction-sub003/internal/signal"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

func barsFromCloses(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func segment(closes []float64, target float64, n int) []float64 {
	last := closes[len(closes)-1]
	for i := 1; i <= n; i++ {
		closes = append(closes, last+(target-last)*float64(i)/float64(n))
	}
	return closes
}

// formingCloses ends mid-handle; breakoutCloses ends on the breakout bar
func formingCloses() []float64 {
	closes := []float64{100}
	closes = segment(closes, 120, 20)
	closes = segment(closes, 96, 24)
	closes = segment(closes, 119, 6)
	closes = segment(closes, 113, 5)
	return closes
}

func breakoutCloses() []float64 {
	return append(formingCloses(), 120.5)
}

func flatCloses() []float64 {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
	}
	return closes
}

// universeSource serves canned bars per symbol and errors on unknown symbols
func universeSource(universe map[string][]market.Bar) market.BarSource {
	return market.BarSourceFunc(func(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Bar, error) {
		bars, ok := universe[symbol]
		if !ok {
			return nil, errors.New("no data for symbol")
		}
		return bars, nil
	})
}

func TestScanCollectsAndSorts(t *testing.T) {
	source := universeSource(map[string][]market.Bar{
		"FORM": barsFromCloses(formingCloses()),
		"BRK":  barsFromCloses(breakoutCloses()),
		"FLAT": barsFromCloses(flatCloses()),
	})

	scanner, err := New(source, DefaultConfig())
	require.NoError(t, err)

	report, err := scanner.Run(context.Background(), []string{"FLAT", "FORM", "BRK", "MISSING"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 4, report.TotalSymbols)

	// Breakout ranks above forming; FLAT yields no candidate
	require.Len(t, report.Results, 2)
	assert.Equal(t, "BRK", report.Results[0].Symbol)
	assert.Equal(t, pattern.StageBreakout, report.Results[0].Pattern.Stage)
	assert.Equal(t, "FORM", report.Results[1].Symbol)
	assert.Equal(t, pattern.StageForming, report.Results[1].Pattern.Stage)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "MISSING", report.Failures[0].Symbol)
	assert.Contains(t, report.Failures[0].Reason, "no data")
}

func TestScanFailureIsolation(t *testing.T) {
	source := universeSource(map[string][]market.Bar{
		"GOOD": barsFromCloses(breakoutCloses()),
	})

	scanner, err := New(source, DefaultConfig())
	require.NoError(t, err)

	report, err := scanner.Run(context.Background(), []string{"BAD1", "GOOD", "BAD2", "BAD3"})
	require.NoError(t, err)

	// Partial results survive the failures
	require.Len(t, report.Results, 1)
	assert.Equal(t, "GOOD", report.Results[0].Symbol)
	assert.Len(t, report.Failures, 3)
}

func TestScanNoSymbolsFatal(t *testing.T) {
	scanner, err := New(universeSource(nil), DefaultConfig())
	require.NoError(t, err)

	_, err = scanner.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestScanUnknownStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "moon_phase"
	_, err := New(universeSource(nil), cfg)
	require.Error(t, err)
}

func TestScanWithBacktest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = signal.StrategyCwhBreakout
	cfg.StrategyParams = backtest.ParamSet{"take_profit_pct": 10}

	source := universeSource(map[string][]market.Bar{
		"BRK": barsFromCloses(breakoutCloses()),
	})
	scanner, err := New(source, cfg)
	require.NoError(t, err)

	report, err := scanner.Run(context.Background(), []string{"BRK"})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	require.NotNil(t, report.Results[0].Backtest)
	// The breakout bar opens a position that is still open at series end
	assert.NotNil(t, report.Results[0].Backtest.OpenPosition)
}

func TestScanConcurrencyBounded(t *testing.T) {
	var inflight, peak atomic.Int32
	source := market.BarSourceFunc(func(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Bar, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return barsFromCloses(flatCloses()), nil
	})

	cfg := DefaultConfig()
	cfg.Concurrency = 2
	scanner, err := New(source, cfg)
	require.NoError(t, err)

	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	_, err = scanner.Run(context.Background(), symbols)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFilterStage(t *testing.T) {
	report := &Report{Results: []SymbolResult{
		{Symbol: "A", Pattern: &pattern.CwhPattern{Stage: pattern.StageReady}},
		{Symbol: "B", Pattern: &pattern.CwhPattern{Stage: pattern.StageForming}},
		{Symbol: "C", Pattern: &pattern.CwhPattern{Stage: pattern.StageReady}},
	}}

	ready := report.FilterStage(pattern.StageReady)
	require.Len(t, ready, 2)
	assert.Equal(t, "A", ready[0].Symbol)
	assert.Equal(t, "C", ready[1].Symbol)
}

func TestJoinExternal(t *testing.T) {
	report := &Report{Results: []SymbolResult{
		{Symbol: "A", Pattern: &pattern.CwhPattern{}},
		{Symbol: "B", Pattern: &pattern.CwhPattern{}},
	}}

	report.JoinExternal(map[string]map[string]float64{
		"A": {"rs_rating": 92},
	})

	assert.Equal(t, 92.0, report.Results[0].External["rs_rating"])
	assert.Nil(t, report.Results[1].External)
}

func TestRenderText(t *testing.T) {
	source := universeSource(map[string][]market.Bar{
		"BRK": barsFromCloses(breakoutCloses()),
	})
	scanner, err := New(source, DefaultConfig())
	require.NoError(t, err)

	report, err := scanner.Run(context.Background(), []string{"BRK", "MISSING"})
	require.NoError(t, err)

	text := RenderText(report)
	assert.Contains(t, text, "CUP-WITH-HANDLE SCAN")
	assert.Contains(t, text, "BRK")
	assert.Contains(t, text, "breakout")
	assert.Contains(t, text, "FAILURES")
	assert.Contains(t, text, "MISSING")
}
