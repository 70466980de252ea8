package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linear(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func assertWarmup(t *testing.T, values []float64, first int) {
	t.Helper()
	for i := 0; i < first; i++ {
		assert.True(t, math.IsNaN(values[i]), "index %d should be undefined", i)
	}
	require.Greater(t, len(values), first)
	assert.False(t, math.IsNaN(values[first]), "index %d should be defined", first)
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assertWarmup(t, out, 2)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, out[2:], 1e-12)

	t.Run("shorter than period is all undefined", func(t *testing.T) {
		for _, v := range SMA([]float64{1, 2}, 3) {
			assert.True(t, math.IsNaN(v))
		}
	})

	t.Run("SMA50 first defined at 49", func(t *testing.T) {
		assertWarmup(t, SMA(linear(60), SMAPeriod), 49)
	})
}

func TestEMA(t *testing.T) {
	out := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assertWarmup(t, out, 2)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, out[2:], 1e-12)

	assertWarmup(t, EMA(linear(40), EMAFastPeriod), 8)
	assertWarmup(t, EMA(linear(40), EMASlowPeriod), 20)
}

func TestRSI(t *testing.T) {
	t.Run("rising series reads 100", func(t *testing.T) {
		out := RSI(linear(20), RSIPeriod)
		assertWarmup(t, out, 14)
		assert.InDelta(t, 100.0, out[14], 1e-9)
	})

	t.Run("flat series reads 0", func(t *testing.T) {
		out := RSI(constant(20, 5), RSIPeriod)
		assert.Equal(t, 0.0, out[14])
	})

	t.Run("wilder smoothing after the seed", func(t *testing.T) {
		closes := append(linear(15), 13)
		out := RSI(closes, RSIPeriod)
		assert.InDelta(t, 100.0*13/14, out[15], 1e-9)
	})

	t.Run("too short is undefined", func(t *testing.T) {
		for _, v := range RSI(linear(14), RSIPeriod) {
			assert.True(t, math.IsNaN(v))
		}
	})
}

func TestATR(t *testing.T) {
	closes := constant(20, 101)
	highs := constant(20, 102)
	lows := constant(20, 100)

	out := ATR(highs, lows, closes, ATRPeriod)
	assertWarmup(t, out, 14)
	for _, v := range out[14:] {
		assert.InDelta(t, 2.0, v, 1e-12)
	}
}

func TestMACD(t *testing.T) {
	res := MACD(linear(50), MACDFastPeriod, MACDSlowPeriod, MACDSignalLen)

	assertWarmup(t, res.Line, 33)
	assertWarmup(t, res.Signal, 33)
	assertWarmup(t, res.Hist, 33)

	// A ramp holds each EMA at a fixed lag of (n-1)/2 bars
	for i := 33; i < 50; i++ {
		assert.InDelta(t, 7.0, res.Line[i], 1e-9)
		assert.InDelta(t, 7.0, res.Signal[i], 1e-9)
		assert.InDelta(t, 0.0, res.Hist[i], 1e-9)
	}

	t.Run("too short is undefined", func(t *testing.T) {
		res := MACD(linear(33), MACDFastPeriod, MACDSlowPeriod, MACDSignalLen)
		for _, v := range res.Line {
			assert.True(t, math.IsNaN(v))
		}
	})
}

func TestBollingerBands(t *testing.T) {
	res := BollingerBands([]float64{1, 3, 5}, 2, 2)

	assert.True(t, math.IsNaN(res.Upper[0]))
	assert.InDelta(t, 2.0, res.Middle[1], 1e-12)
	assert.InDelta(t, 4.0, res.Upper[1], 1e-12, "population deviation of {1,3} is 1")
	assert.InDelta(t, 0.0, res.Lower[1], 1e-12)
	assert.InDelta(t, 6.0, res.Upper[2], 1e-12)
	assert.InDelta(t, 2.0, res.Lower[2], 1e-12)

	assertWarmup(t, BollingerBands(linear(30), BBPeriod, BBDeviations).Upper, 19)
}

func TestVWAP(t *testing.T) {
	prices := []float64{10, 20, 30}
	out := VWAP(prices, prices, prices, []float64{1, 1, 2})
	assert.InDeltaSlice(t, []float64{10, 15, 22.5}, out, 1e-12)

	t.Run("missing bar is skipped", func(t *testing.T) {
		prices := []float64{10, math.NaN(), 30}
		out := VWAP(prices, prices, prices, []float64{1, 1, 1})
		assert.InDelta(t, 10.0, out[0], 1e-12)
		assert.True(t, math.IsNaN(out[1]))
		assert.InDelta(t, 20.0, out[2], 1e-12)
	})

	t.Run("zero volume is undefined", func(t *testing.T) {
		out := VWAP([]float64{1}, []float64{1}, []float64{1}, []float64{0})
		assert.True(t, math.IsNaN(out[0]))
	})
}

func TestOBV(t *testing.T) {
	out := OBV([]float64{10, 11, 11, 9}, []float64{5, 3, 4, 2})
	assert.Equal(t, []float64{5, 8, 8, 6}, out)
	assert.Empty(t, OBV(nil, nil))
}

func TestADX(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 102 + float64(i)
		lows[i] = highs[i] - 2
		closes[i] = highs[i] - 1
	}

	out := ADX(highs, lows, closes, ADXPeriod)
	assertWarmup(t, out, 27)
	for _, v := range out[27:] {
		assert.InDelta(t, 100.0, v, 1e-9, "a one-directional trend has DX 100")
	}

	t.Run("flat market reads 0", func(t *testing.T) {
		out := ADX(constant(n, 102), constant(n, 100), constant(n, 101), ADXPeriod)
		assert.Equal(t, 0.0, out[27])
	})
}

func TestDiff(t *testing.T) {
	out := Diff([]float64{1, 4, 2})
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, []float64{3, -2}, out[1:])
}
