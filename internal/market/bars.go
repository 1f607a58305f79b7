// Package market provides price bar types and the data source plumbing
// consumed by the backtest, pattern detection and scan layers.
package market

import (
	"time"
)

// Timeframe identifies the bar interval
type Timeframe string

const (
	TimeframeDaily  Timeframe = "daily"
	TimeframeWeekly Timeframe = "weekly"
)

// AnnualizationFactor returns the number of bars per year for a timeframe,
// used for Sharpe ratio annualization
func (tf Timeframe) AnnualizationFactor() float64 {
	switch tf {
	case TimeframeWeekly:
		return 52
	default:
		return 252
	}
}

// Bar represents OHLCV data for one interval
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the close price series from a bar slice
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Highs extracts the high price series from a bar slice
func Highs(bars []Bar) []float64 {
	highs := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
	}
	return highs
}

// Lows extracts the low price series from a bar slice
func Lows(bars []Bar) []float64 {
	lows := make([]float64, len(bars))
	for i, b := range bars {
		lows[i] = b.Low
	}
	return lows
}

// IsOrdered reports whether bars are strictly ascending by date with no
// duplicates. Inputs are assumed pre-sorted; this is a cheap spot check for
// tests and debugging, not a full validation pass.
func IsOrdered(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return false
		}
	}
	return true
}
