// Package signal turns bar series into per-bar trade actions. Generators are
// pure: the same bars and params always yield the same actions, and the
// action at index i depends only on bars[0..i].
package signal

import (
	"fmt"
	"sort"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// StrategyID selects one of the built-in generators.
type StrategyID string

const (
	StrategyMACross     StrategyID = "ma_cross"
	StrategyRsiReversal StrategyID = "rsi_reversal"
	StrategyMacdCross   StrategyID = "macd_cross"
	StrategyMacdTrail   StrategyID = "macd_trail"
	StrategyDipBuy      StrategyID = "dip_buy"
	StrategyCwhBreakout StrategyID = "cwh_breakout"
	StrategyCwhTrail    StrategyID = "cwh_trail"
)

// Generator computes one action per bar. Implementations must return a slice
// the same length as bars and emit Hold on insufficient lookback or
// zero/negative prices, never an error.
type Generator interface {
	ID() StrategyID
	Compute(bars []market.Bar, params backtest.ParamSet) []backtest.Action
}

var registry = map[StrategyID]func() Generator{
	StrategyMACross:     func() Generator { return maCross{} },
	StrategyRsiReversal: func() Generator { return rsiReversal{} },
	StrategyMacdCross:   func() Generator { return macdCross{} },
	StrategyMacdTrail:   func() Generator { return macdTrail{} },
	StrategyDipBuy:      func() Generator { return dipBuy{} },
	StrategyCwhBreakout: func() Generator { return cwhBreakout{} },
	StrategyCwhTrail:    func() Generator { return cwhTrail{} },
}

// New returns the generator for id or an error for an unknown strategy.
func New(id StrategyID) (Generator, error) {
	factory, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", id, IDs())
	}
	return factory(), nil
}

// IDs lists the known strategy identifiers in stable order.
func IDs() []StrategyID {
	ids := make([]StrategyID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Func adapts a generator to the optimizer's signal function type.
func Func(g Generator) backtest.SignalFunc {
	return g.Compute
}

// fold is the position-tracking state a stateful generator threads through
// its scan of the series.
type fold struct {
	inPosition bool
	entryPrice float64
	peakPrice  float64
}

func (f *fold) enter(price float64) {
	f.inPosition = true
	f.entryPrice = price
	f.peakPrice = price
}

func (f *fold) exit() {
	*f = fold{}
}

// trailingHit raises the tracked peak to close first, then reports whether
// the drawdown from that peak reached trailPct.
func (f *fold) trailingHit(close, trailPct float64) bool {
	if close > f.peakPrice {
		f.peakPrice = close
	}
	return trailPct > 0 && close <= f.peakPrice*(1-trailPct/100)
}
