package indicators

import (
	"github.com/cinar/indicator/v2/momentum"
)

// RSI calculates the Relative Strength Index, right-aligned against prices
func RSI(prices []float64, period int) ([]float64, int) {
	if period < 1 || len(prices) <= period {
		out, _ := alignRight(nil, len(prices))
		return out, len(prices)
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	values := collect(rsi.Compute(sliceToChan(prices)))
	return alignRight(values, len(prices))
}
