package signal

import (
	"github.com/ksk-taka/stock-prediction-sub003/internal/indicators"
	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// ===== RSI REVERSAL =====

// rsiReversal buys when RSI recovers up through the oversold level and exits
// on either an overbought rollover or an ATR-multiple stop below entry.
// Params: rsi_period (14), oversold (30), overbought (70), atr_period (14),
// atr_mult (2).
type rsiReversal struct{}

func (rsiReversal) ID() StrategyID { return StrategyRsiReversal }

func (rsiReversal) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	oversold := params.Get("oversold", 30)
	overbought := params.Get("overbought", 70)
	atrMult := params.Get("atr_mult", 2)

	closes := market.Closes(bars)
	rsi, rsiWarm := indicators.RSI(closes, int(params.Get("rsi_period", 14)))
	atr, atrWarm := indicators.ATR(market.Highs(bars), market.Lows(bars), closes, int(params.Get("atr_period", 14)))
	warm := maxInt(rsiWarm, atrWarm)

	var state fold
	for i := warm + 1; i < len(bars); i++ {
		c := closes[i]
		if c <= 0 {
			continue
		}
		if !state.inPosition {
			if rsi[i-1] < oversold && rsi[i] >= oversold {
				actions[i] = backtest.ActionBuy
				state.enter(c)
			}
			continue
		}
		switch {
		case c <= state.entryPrice-atrMult*atr[i]:
			actions[i] = backtest.ActionSell
			state.exit()
		case rsi[i-1] > overbought && rsi[i] <= overbought:
			actions[i] = backtest.ActionSell
			state.exit()
		}
	}
	return actions
}

// ===== DIP BUY =====

// dipBuy buys when the close drops dip_pct below the rolling high of the
// previous lookback bars and sells when price recovers to that reference
// high. Params: lookback (20), dip_pct (5).
type dipBuy struct{}

func (dipBuy) ID() StrategyID { return StrategyDipBuy }

func (dipBuy) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	lookback := int(params.Get("lookback", 20))
	dipPct := params.Get("dip_pct", 5)
	if lookback < 1 {
		return actions
	}

	closes := market.Closes(bars)
	var state fold
	for i := lookback; i < len(bars); i++ {
		c := closes[i]
		if c <= 0 {
			continue
		}
		high := rollingMax(closes[i-lookback : i])
		if high <= 0 {
			continue
		}
		if !state.inPosition {
			if c <= high*(1-dipPct/100) {
				actions[i] = backtest.ActionBuy
				state.enter(c)
				// Remember the high the dip was measured against
				state.peakPrice = high
			}
			continue
		}
		if c >= state.peakPrice {
			actions[i] = backtest.ActionSell
			state.exit()
		}
	}
	return actions
}

func rollingMax(window []float64) float64 {
	var high float64
	for _, v := range window {
		if v > high {
			high = v
		}
	}
	return high
}
