package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMAAlignment(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}

	values, warm := SMA(prices, 3)
	require.Len(t, values, len(prices))

	for i := 0; i < warm; i++ {
		assert.True(t, math.IsNaN(values[i]), "warmup index %d should be NaN", i)
	}
	// Last SMA(3) over 4,5,6
	assert.InDelta(t, 5.0, values[len(values)-1], 1e-9)
}

func TestSMAInsufficientData(t *testing.T) {
	values, warm := SMA([]float64{1, 2}, 5)
	require.Len(t, values, 2)
	assert.Equal(t, 2, warm)
	for _, v := range values {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRSIBounds(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 100 + float64(i%7)
	}

	values, warm := RSI(prices, 14)
	require.Len(t, values, len(prices))
	require.Less(t, warm, len(prices))

	for i := warm; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], 0.0)
		assert.LessOrEqual(t, values[i], 100.0)
	}
}

func TestMACDAlignment(t *testing.T) {
	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	macdLine, signalLine, warm := MACD(prices, 12, 26, 9)
	require.Len(t, macdLine, len(prices))
	require.Len(t, signalLine, len(prices))
	require.Less(t, warm, len(prices))

	for i := warm; i < len(prices); i++ {
		assert.False(t, math.IsNaN(macdLine[i]))
		assert.False(t, math.IsNaN(signalLine[i]))
	}
	// Monotonic uptrend keeps MACD above its signal at the tail
	assert.Greater(t, macdLine[len(prices)-1], 0.0)
}

func TestATR(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 102
		lows[i] = 98
		closes[i] = 100
	}

	values, warm := ATR(highs, lows, closes, 14)
	require.Len(t, values, n)
	require.Equal(t, 14, warm)

	// Constant 4-point range converges to ATR of 4
	assert.InDelta(t, 4.0, values[n-1], 1e-9)
}

func TestATRMismatchedLengths(t *testing.T) {
	values, warm := ATR([]float64{1, 2}, []float64{1}, []float64{1, 2}, 1)
	assert.Equal(t, 2, warm)
	for _, v := range values {
		assert.True(t, math.IsNaN(v))
	}
}
