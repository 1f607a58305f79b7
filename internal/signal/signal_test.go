package signal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

func barsFromCloses(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.02,
			Low:    c * 0.98,
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

// waveCloses oscillates around 100 so crossover strategies trade repeatedly
func waveCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/6)
	}
	return closes
}

// cupCloses is a cup-with-handle followed by a breakout and a rise
func cupCloses() []float64 {
	closes := []float64{100}
	closes = segment(closes, 120, 20)
	closes = segment(closes, 96, 24)
	closes = segment(closes, 119, 6)
	closes = segment(closes, 113, 5)
	closes = append(closes, 120.5)
	closes = segment(closes, 130, 5)
	return closes
}

func TestFactoryKnownStrategies(t *testing.T) {
	for _, id := range IDs() {
		gen, err := New(id)
		require.NoError(t, err, "strategy %s", id)
		assert.Equal(t, id, gen.ID())
	}
	assert.Len(t, IDs(), 7)
}

func TestFactoryUnknownStrategy(t *testing.T) {
	_, err := New("moon_phase")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestComputeShortSeriesAllHold(t *testing.T) {
	bars := barsFromCloses([]float64{100, 101, 102, 101, 100})
	for _, id := range IDs() {
		gen, err := New(id)
		require.NoError(t, err)

		actions := gen.Compute(bars, backtest.ParamSet{})
		require.Len(t, actions, len(bars), "strategy %s", id)
		for i, a := range actions {
			assert.Equal(t, backtest.ActionHold, a, "strategy %s bar %d", id, i)
		}
	}
}

func TestComputeEmptySeries(t *testing.T) {
	for _, id := range IDs() {
		gen, err := New(id)
		require.NoError(t, err)
		assert.Empty(t, gen.Compute(nil, backtest.ParamSet{}))
	}
}

func TestCausalityPrefix(t *testing.T) {
	bars := barsFromCloses(waveCloses(120))
	for _, id := range IDs() {
		gen, err := New(id)
		require.NoError(t, err)

		full := gen.Compute(bars, backtest.ParamSet{})
		for cut := 40; cut <= len(bars); cut += 7 {
			prefix := gen.Compute(bars[:cut], backtest.ParamSet{})
			require.Len(t, prefix, cut)
			for i := range prefix {
				assert.Equal(t, full[i], prefix[i],
					"strategy %s bar %d differs at cut %d", id, i, cut)
			}
		}
	}
}

func TestZeroPriceBarsHold(t *testing.T) {
	closes := waveCloses(80)
	closes[40] = 0
	closes[41] = -1
	bars := barsFromCloses(closes)

	for _, id := range IDs() {
		gen, err := New(id)
		require.NoError(t, err)

		actions := gen.Compute(bars, backtest.ParamSet{})
		assert.Equal(t, backtest.ActionHold, actions[40], "strategy %s", id)
		assert.Equal(t, backtest.ActionHold, actions[41], "strategy %s", id)
	}
}

func firstAction(actions []backtest.Action, want backtest.Action) int {
	for i, a := range actions {
		if a == want {
			return i
		}
	}
	return -1
}

func TestMACrossBuysBeforeSells(t *testing.T) {
	closes := []float64{100}
	closes = segment(closes, 100, 14) // flat warmup
	closes = segment(closes, 125, 15) // fast pulls above slow
	closes = segment(closes, 85, 15)  // fast drops below slow

	actions := maCross{}.Compute(barsFromCloses(closes), backtest.ParamSet{
		"fast_period": 3,
		"slow_period": 8,
	})

	buy := firstAction(actions, backtest.ActionBuy)
	sell := firstAction(actions, backtest.ActionSell)
	require.GreaterOrEqual(t, buy, 0)
	require.GreaterOrEqual(t, sell, 0)
	assert.Less(t, buy, sell)
}

func TestMACrossInvalidPeriodsHold(t *testing.T) {
	bars := barsFromCloses(waveCloses(60))
	actions := maCross{}.Compute(bars, backtest.ParamSet{
		"fast_period": 20,
		"slow_period": 10,
	})
	for _, a := range actions {
		assert.Equal(t, backtest.ActionHold, a)
	}
}

func TestMacdTrailAlternatesBuySell(t *testing.T) {
	bars := barsFromCloses(waveCloses(150))
	actions := macdTrail{}.Compute(bars, backtest.ParamSet{"trail_pct": 5})

	inPosition := false
	buys, sells := 0, 0
	for i, a := range actions {
		switch a {
		case backtest.ActionBuy:
			require.False(t, inPosition, "double buy at bar %d", i)
			inPosition = true
			buys++
		case backtest.ActionSell:
			require.True(t, inPosition, "sell while flat at bar %d", i)
			inPosition = false
			sells++
		}
	}
	assert.Positive(t, buys)
	assert.Positive(t, sells)
}

func TestRsiReversalRoundTrip(t *testing.T) {
	closes := []float64{120}
	closes = segment(closes, 90, 30)  // grind down, RSI oversold
	closes = segment(closes, 120, 30) // recovery, RSI crosses back up
	closes = segment(closes, 105, 12) // rollover

	actions := rsiReversal{}.Compute(barsFromCloses(closes), backtest.ParamSet{})

	buy := firstAction(actions, backtest.ActionBuy)
	sell := firstAction(actions, backtest.ActionSell)
	require.GreaterOrEqual(t, buy, 0)
	require.GreaterOrEqual(t, sell, 0)
	assert.Less(t, buy, sell)
}

func TestDipBuyBuysDipSellsRecovery(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes = append(closes, 90, 94, 98, 101)

	actions := dipBuy{}.Compute(barsFromCloses(closes), backtest.ParamSet{})

	assert.Equal(t, backtest.ActionBuy, actions[25])
	assert.Equal(t, backtest.ActionSell, actions[28])
}

func TestCwhBreakoutBuysOnlyAtBreakout(t *testing.T) {
	closes := cupCloses()
	actions := cwhBreakout{}.Compute(barsFromCloses(closes), backtest.ParamSet{})

	breakoutIdx := 56 // first close above the 119 rim
	for i, a := range actions {
		if i == breakoutIdx {
			assert.Equal(t, backtest.ActionBuy, a, "bar %d", i)
		} else {
			assert.Equal(t, backtest.ActionHold, a, "bar %d", i)
		}
	}
}

func TestCwhTrailSellsAfterPeakDrop(t *testing.T) {
	closes := cupCloses()            // peaks at 130
	closes = segment(closes, 118, 4) // more than 8% off the peak

	actions := cwhTrail{}.Compute(barsFromCloses(closes), backtest.ParamSet{})

	buy := firstAction(actions, backtest.ActionBuy)
	sell := firstAction(actions, backtest.ActionSell)
	require.GreaterOrEqual(t, buy, 0)
	require.GreaterOrEqual(t, sell, 0)
	assert.Less(t, buy, sell)
}

func TestFuncAdapter(t *testing.T) {
	gen, err := New(StrategyMACross)
	require.NoError(t, err)

	fn := Func(gen)
	bars := barsFromCloses(waveCloses(60))
	assert.Equal(t, gen.Compute(bars, backtest.ParamSet{}), fn(bars, backtest.ParamSet{}))
}
