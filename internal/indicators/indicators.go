// Package indicators provides slice-based technical indicator calculations
// for signal generation. Indicator math is delegated to cinar/indicator;
// results are right-aligned against the input series so that a value at
// index i depends only on prices at indices <= i.
package indicators

import "math"

// sliceToChan converts a price slice to the channel form cinar/indicator
// consumes
func sliceToChan(values []float64) chan float64 {
	ch := make(chan float64, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

// collect drains an indicator output channel into a slice
func collect(ch <-chan float64) []float64 {
	var values []float64
	for v := range ch {
		values = append(values, v)
	}
	return values
}

// alignRight places computed values at the tail of a slice of length n and
// fills the warmup prefix with NaN. It returns the aligned slice and the
// first valid index.
func alignRight(values []float64, n int) ([]float64, int) {
	warm := n - len(values)
	if warm < 0 {
		warm = 0
		values = values[len(values)-n:]
	}
	out := make([]float64, n)
	for i := 0; i < warm; i++ {
		out[i] = math.NaN()
	}
	copy(out[warm:], values)
	return out, warm
}
