// Package backtest provides a signal-to-trade backtesting engine, statistics
// aggregation and parameter optimization for rule-based trading strategies.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

// ============================================================================
// DATA STRUCTURES
// ============================================================================

// Action is the per-bar output of a signal generator
type Action int8

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "hold"
	}
}

// ExitReason records which rule closed a trade
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitSignal       ExitReason = "signal"
)

// ExitRules configures the fixed exit conditions evaluated on every bar while
// in a position. A zero value disables that rule.
type ExitRules struct {
	TakeProfitPct   float64 `json:"take_profit_pct"`   // e.g. 20 closes at +20%
	StopLossPct     float64 `json:"stop_loss_pct"`     // e.g. 8 closes at -8%
	TrailingStopPct float64 `json:"trailing_stop_pct"` // drawdown from peak since entry
}

// Position is an open long position. At most one exists per engine run.
type Position struct {
	Symbol     string    `json:"symbol"`
	EntryIndex int       `json:"entry_index"`
	EntryDate  time.Time `json:"entry_date"`
	EntryPrice float64   `json:"entry_price"`
	PeakPrice  float64   `json:"peak_price"` // highest close since entry
}

// Trade is a closed round trip. Immutable once produced.
type Trade struct {
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	ReturnPct   float64    `json:"return_pct"`
	IsWin       bool       `json:"is_win"`
	ExitReason  ExitReason `json:"exit_reason"`
	HoldingBars int        `json:"holding_bars"`
}

// Result is the outcome of one backtest run
type Result struct {
	Symbol       string    `json:"symbol"`
	Trades       []Trade   `json:"trades"`
	OpenPosition *Position `json:"open_position,omitempty"` // still open at series end
	Stats        Stats     `json:"stats"`
}

// ============================================================================
// POSITION/TRADE STATE MACHINE
// ============================================================================

// Run folds a per-bar action sequence over the bar series into closed trades.
// The fold is deterministic: flat -> in_position -> flat, buy honored only
// while flat, sell while flat ignored. While in a position, exit conditions
// are evaluated in priority order (take-profit, stop-loss, trailing stop,
// sell signal) on each bar after entry. A position still open at series end
// is surfaced as Result.OpenPosition and excluded from closed-trade stats.
func Run(symbol string, bars []market.Bar, actions []Action, rules ExitRules, tf market.Timeframe) (*Result, error) {
	if len(actions) != len(bars) {
		return nil, fmt.Errorf("action count %d does not match bar count %d", len(actions), len(bars))
	}

	result := &Result{Symbol: symbol}
	var pos *Position

	for i, bar := range bars {
		if bar.Close <= 0 {
			// Bad tick; never a fault, never an exit trigger
			continue
		}

		if pos == nil {
			if actions[i] == ActionBuy {
				pos = &Position{
					Symbol:     symbol,
					EntryIndex: i,
					EntryDate:  bar.Date,
					EntryPrice: bar.Close,
					PeakPrice:  bar.Close,
				}
				log.Debug().
					Str("symbol", symbol).
					Time("date", bar.Date).
					Float64("price", bar.Close).
					Msg("Opened position")
			}
			continue
		}

		// Exits are evaluated from the bar after entry so that every trade
		// has entry date strictly before exit date
		if i == pos.EntryIndex {
			continue
		}

		if bar.Close > pos.PeakPrice {
			pos.PeakPrice = bar.Close
		}

		if reason, ok := evaluateExit(pos, bar.Close, actions[i], rules); ok {
			trade := closeTrade(pos, bar, i, reason)
			result.Trades = append(result.Trades, trade)
			log.Debug().
				Str("symbol", symbol).
				Time("exit", bar.Date).
				Str("reason", string(reason)).
				Float64("return_pct", trade.ReturnPct).
				Msg("Closed position")
			pos = nil
		}
	}

	result.OpenPosition = pos
	result.Stats = ComputeStats(result.Trades, DefaultInitialCapital, tf)
	return result, nil
}

// evaluateExit checks exit conditions in priority order and reports the first
// that fires
func evaluateExit(pos *Position, closePrice float64, action Action, rules ExitRules) (ExitReason, bool) {
	gainPct := (closePrice - pos.EntryPrice) / pos.EntryPrice * 100

	if rules.TakeProfitPct > 0 && gainPct >= rules.TakeProfitPct {
		return ExitTakeProfit, true
	}
	if rules.StopLossPct > 0 && gainPct <= -rules.StopLossPct {
		return ExitStopLoss, true
	}
	if rules.TrailingStopPct > 0 {
		drawdownPct := (pos.PeakPrice - closePrice) / pos.PeakPrice * 100
		if drawdownPct >= rules.TrailingStopPct {
			return ExitTrailingStop, true
		}
	}
	if action == ActionSell {
		return ExitSignal, true
	}
	return "", false
}

// closeTrade converts an open position into a closed trade at the given bar
func closeTrade(pos *Position, bar market.Bar, index int, reason ExitReason) Trade {
	returnPct := (bar.Close - pos.EntryPrice) / pos.EntryPrice * 100
	return Trade{
		EntryDate:   pos.EntryDate,
		EntryPrice:  pos.EntryPrice,
		ExitDate:    bar.Date,
		ExitPrice:   bar.Close,
		ReturnPct:   returnPct,
		IsWin:       returnPct > 0,
		ExitReason:  reason,
		HoldingBars: index - pos.EntryIndex,
	}
}
