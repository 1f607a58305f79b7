// Package pattern detects Cup-with-Handle chart formations on price series,
// tracking candidate maturity from forming through ready to breakout.
package pattern

// swingHighIdx returns indices whose close is the maximum over the
// +-lookback neighborhood
func swingHighIdx(closes []float64, lookback int) []int {
	var idx []int
	for i := lookback; i < len(closes)-lookback; i++ {
		high := closes[i]
		isHigh := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j != i && closes[j] > high {
				isHigh = false
				break
			}
		}
		if isHigh {
			idx = append(idx, i)
		}
	}
	return idx
}

// minCloseIdx returns the index of the lowest close in [start, end), ties
// resolved to the earliest occurrence
func minCloseIdx(closes []float64, start, end int) int {
	minIdx := start
	for i := start + 1; i < end; i++ {
		if closes[i] < closes[minIdx] {
			minIdx = i
		}
	}
	return minIdx
}
