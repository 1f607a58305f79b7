package indicators

import (
	"github.com/cinar/indicator/v2/trend"
)

// SMA calculates the Simple Moving Average. The returned slice has the same
// length as prices; the warmup prefix is NaN and warm is the first valid
// index. If prices is shorter than period, warm equals len(prices).
func SMA(prices []float64, period int) ([]float64, int) {
	if period < 1 || len(prices) < period {
		out, _ := alignRight(nil, len(prices))
		return out, len(prices)
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	values := collect(sma.Compute(sliceToChan(prices)))
	return alignRight(values, len(prices))
}

// EMA calculates the Exponential Moving Average with the same alignment
// contract as SMA
func EMA(prices []float64, period int) ([]float64, int) {
	if period < 1 || len(prices) < period {
		out, _ := alignRight(nil, len(prices))
		return out, len(prices)
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	values := collect(ema.Compute(sliceToChan(prices)))
	return alignRight(values, len(prices))
}
