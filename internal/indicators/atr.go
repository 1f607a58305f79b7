package indicators

import "math"

// ATR calculates the Average True Range with Wilder smoothing, right-aligned
// against the input series. Implemented manually in the same way as our other
// HLC-based indicators rather than through the channel pipeline, since it
// feeds a per-bar stop calculation that wants plain slices.
func ATR(highs, lows, closes []float64, period int) ([]float64, int) {
	n := len(closes)
	if period < 1 || len(highs) != n || len(lows) != n || n <= period {
		out, _ := alignRight(nil, n)
		return out, n
	}

	trueRanges := make([]float64, n)
	trueRanges[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		highLow := highs[i] - lows[i]
		highClose := math.Abs(highs[i] - closes[i-1])
		lowClose := math.Abs(lows[i] - closes[i-1])
		trueRanges[i] = math.Max(highLow, math.Max(highClose, lowClose))
	}

	out := make([]float64, n)
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	// Seed with the simple average of the first `period` true ranges
	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRanges[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		out[i] = atr
	}

	return out, period
}
