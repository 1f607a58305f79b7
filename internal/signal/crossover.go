package signal

import (
	"github.com/ksk-taka/stock-prediction-sub003/internal/indicators"
	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// ===== MOVING AVERAGE CROSSOVER =====

// maCross buys when the fast SMA crosses above the slow SMA and sells on the
// opposite cross. Params: fast_period (10), slow_period (30).
type maCross struct{}

func (maCross) ID() StrategyID { return StrategyMACross }

func (maCross) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	fast := int(params.Get("fast_period", 10))
	slow := int(params.Get("slow_period", 30))
	if fast < 1 || fast >= slow {
		return actions
	}

	closes := market.Closes(bars)
	fastMA, fastWarm := indicators.SMA(closes, fast)
	slowMA, slowWarm := indicators.SMA(closes, slow)
	warm := maxInt(fastWarm, slowWarm)

	for i := warm + 1; i < len(bars); i++ {
		if bars[i].Close <= 0 {
			continue
		}
		prev := fastMA[i-1] - slowMA[i-1]
		curr := fastMA[i] - slowMA[i]
		switch {
		case prev <= 0 && curr > 0:
			actions[i] = backtest.ActionBuy
		case prev >= 0 && curr < 0:
			actions[i] = backtest.ActionSell
		}
	}
	return actions
}

// ===== MACD CROSSOVER =====

// macdCross trades the MACD line crossing its signal line in both directions.
// Params: fast_period (12), slow_period (26), signal_period (9).
type macdCross struct{}

func (macdCross) ID() StrategyID { return StrategyMacdCross }

func (macdCross) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	macdLine, signalLine, warm := macdLines(bars, params)

	for i := warm + 1; i < len(bars); i++ {
		if bars[i].Close <= 0 {
			continue
		}
		switch {
		case crossesUp(macdLine, signalLine, i):
			actions[i] = backtest.ActionBuy
		case crossesUp(signalLine, macdLine, i):
			actions[i] = backtest.ActionSell
		}
	}
	return actions
}

// macdTrail enters on a MACD cross up and exits only through a trailing stop
// on the close-price peak since entry. Params: fast_period (12), slow_period
// (26), signal_period (9), trail_pct (8).
type macdTrail struct{}

func (macdTrail) ID() StrategyID { return StrategyMacdTrail }

func (macdTrail) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	macdLine, signalLine, warm := macdLines(bars, params)
	trailPct := params.Get("trail_pct", 8)

	var state fold
	for i := warm + 1; i < len(bars); i++ {
		c := bars[i].Close
		if c <= 0 {
			continue
		}
		if !state.inPosition {
			if crossesUp(macdLine, signalLine, i) {
				actions[i] = backtest.ActionBuy
				state.enter(c)
			}
			continue
		}
		if state.trailingHit(c, trailPct) {
			actions[i] = backtest.ActionSell
			state.exit()
		}
	}
	return actions
}

func macdLines(bars []market.Bar, params backtest.ParamSet) (macdLine, signalLine []float64, warm int) {
	fast := int(params.Get("fast_period", 12))
	slow := int(params.Get("slow_period", 26))
	signalPeriod := int(params.Get("signal_period", 9))
	return indicators.MACD(market.Closes(bars), fast, slow, signalPeriod)
}

// crossesUp reports whether a crossed above b at index i
func crossesUp(a, b []float64, i int) bool {
	return a[i-1] <= b[i-1] && a[i] > b[i]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
