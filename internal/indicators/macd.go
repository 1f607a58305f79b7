package indicators

import (
	"github.com/cinar/indicator/v2/trend"
)

// MACD calculates the MACD line and its signal line, both right-aligned
// against prices. warm is the first index at which both lines are valid.
func MACD(prices []float64, fast, slow, signal int) (macdLine, signalLine []float64, warm int) {
	if fast < 1 || slow <= fast || signal < 1 || len(prices) < slow+signal {
		macdLine, _ = alignRight(nil, len(prices))
		signalLine, _ = alignRight(nil, len(prices))
		return macdLine, signalLine, len(prices)
	}

	macd := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	macdChan, signalChan := macd.Compute(sliceToChan(prices))

	// The two output channels advance in lockstep; drain them together
	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		s, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, s)
	}

	macdLine, macdWarm := alignRight(macdValues, len(prices))
	signalLine, signalWarm := alignRight(signalValues, len(prices))
	warm = macdWarm
	if signalWarm > warm {
		warm = signalWarm
	}
	return macdLine, signalLine, warm
}
