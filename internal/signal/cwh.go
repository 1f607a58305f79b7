package signal

import (
	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/internal/pattern"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// cwhConfigFromParams overlays tuned detection thresholds onto the default
// bounds, so the same knobs work as grid-search parameters.
func cwhConfigFromParams(params backtest.ParamSet) pattern.Config {
	cfg := pattern.DefaultConfig()
	cfg.PivotLookback = int(params.Get("pivot_lookback", float64(cfg.PivotLookback)))
	cfg.MinCupDepthPct = params.Get("min_cup_depth_pct", cfg.MinCupDepthPct)
	cfg.MaxCupDepthPct = params.Get("max_cup_depth_pct", cfg.MaxCupDepthPct)
	cfg.MinCupBars = int(params.Get("min_cup_bars", float64(cfg.MinCupBars)))
	cfg.MaxCupBars = int(params.Get("max_cup_bars", float64(cfg.MaxCupBars)))
	cfg.RimTolerancePct = params.Get("rim_tolerance_pct", cfg.RimTolerancePct)
	cfg.MinHandlePullbackPct = params.Get("min_handle_pullback_pct", cfg.MinHandlePullbackPct)
	cfg.MaxHandlePullbackPct = params.Get("max_handle_pullback_pct", cfg.MaxHandlePullbackPct)
	cfg.MaxHandleBars = int(params.Get("max_handle_bars", float64(cfg.MaxHandleBars)))
	cfg.ReadyThresholdPct = params.Get("ready_threshold_pct", cfg.ReadyThresholdPct)
	return cfg
}

// cwhBreakout buys on cup-with-handle breakout bars. It emits no sells;
// exits are left to the backtest exit rules (take-profit/stop-loss params).
type cwhBreakout struct{}

func (cwhBreakout) ID() StrategyID { return StrategyCwhBreakout }

func (cwhBreakout) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	for i, flagged := range pattern.Breakouts(bars, cwhConfigFromParams(params)) {
		if flagged && bars[i].Close > 0 {
			actions[i] = backtest.ActionBuy
		}
	}
	return actions
}

// cwhTrail buys on breakout bars and rides the move with a trailing stop on
// the close-price peak since entry. Params: trail_pct (8) plus the detection
// thresholds.
type cwhTrail struct{}

func (cwhTrail) ID() StrategyID { return StrategyCwhTrail }

func (cwhTrail) Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action {
	actions := make([]backtest.Action, len(bars))
	flags := pattern.Breakouts(bars, cwhConfigFromParams(params))
	trailPct := params.Get("trail_pct", 8)

	var state fold
	for i, bar := range bars {
		c := bar.Close
		if c <= 0 {
			continue
		}
		if !state.inPosition {
			if flags[i] {
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
