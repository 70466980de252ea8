package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// The functions in this file return a slice as long as their input, with NaN
// at every index where the indicator is not yet defined. Warm-up lengths
// follow the TA-Lib conventions so outputs line up with the usual charting
// tools.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average, first defined at index period-1.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	computed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	copy(out[period-1:], computed)
	return out
}

// EMA is the exponential moving average seeded with the SMA of the first
// period values, first defined at index period-1.
func EMA(values []float64, period int) []float64 {
	return emaFrom(values, period, period-1)
}

// emaFrom computes an EMA whose seed is the SMA of the period values ending at
// index first; output starts at first.
func emaFrom(values []float64, period, first int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || first < period-1 || first >= len(values) {
		return out
	}

	var seed float64
	for i := first - period + 1; i <= first; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[first] = prev

	k := 2.0 / float64(period+1)
	for i := first + 1; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// RSI is Wilder's relative strength index, first defined at index period.
// A flat window yields 0.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff < 0 {
			loss -= diff
		} else {
			gain += diff
		}
	}
	n := float64(period)
	gain /= n
	loss /= n
	out[period] = rsiValue(gain, loss)

	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain *= n - 1
		loss *= n - 1
		if diff < 0 {
			loss -= diff
		} else {
			gain += diff
		}
		gain /= n
		loss /= n
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	total := gain + loss
	if total == 0 {
		return 0
	}
	return 100 * gain / total
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if d := math.Abs(high - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// ATR is Wilder's average true range, first defined at index period.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n <= period || len(highs) != n || len(lows) != n {
		return out
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(highs[i], lows[i], closes[i-1])
	}
	p := float64(period)
	prev := sum / p
	out[period] = prev

	for i := period + 1; i < n; i++ {
		prev = (prev*(p-1) + trueRange(highs[i], lows[i], closes[i-1])) / p
		out[i] = prev
	}
	return out
}

// MACDResult holds the three MACD lines.
type MACDResult struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

// MACD computes the moving average convergence divergence. All three lines
// are first defined at index (slow-1)+(signal-1). The fast EMA is seeded over
// the window ending where the slow EMA starts, so both averages begin on the
// same bar.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	n := len(closes)
	res := MACDResult{Line: nanSlice(n), Signal: nanSlice(n), Hist: nanSlice(n)}
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return res
	}
	if fast > slow {
		fast, slow = slow, fast
	}
	start := slow - 1
	first := start + signal - 1
	if first >= n {
		return res
	}

	fastEMA := emaFrom(closes, fast, start)
	slowEMA := emaFrom(closes, slow, start)

	line := nanSlice(n)
	for i := start; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := emaFrom(line, signal, first)

	for i := first; i < n; i++ {
		res.Line[i] = line[i]
		res.Signal[i] = sig[i]
		res.Hist[i] = line[i] - sig[i]
	}
	return res
}

// BandsResult holds Bollinger band lines.
type BandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands computes an SMA middle band with bands k population standard
// deviations away, first defined at index period-1.
func BollingerBands(closes []float64, period int, k float64) BandsResult {
	n := len(closes)
	res := BandsResult{Upper: nanSlice(n), Middle: SMA(closes, period), Lower: nanSlice(n)}
	if period <= 0 || n < period {
		return res
	}

	for i := period - 1; i < n; i++ {
		mean := res.Middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		res.Upper[i] = mean + k*sd
		res.Lower[i] = mean - k*sd
	}
	return res
}

// VWAP is the running volume weighted average of the typical price from the
// first bar. It never resets. Bars with a missing input are skipped in the
// running sums and yield NaN themselves.
func VWAP(highs, lows, closes, volumes []float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	var pv, vol float64
	for i := 0; i < n; i++ {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		if math.IsNaN(tp) || math.IsNaN(volumes[i]) {
			continue
		}
		pv += tp * volumes[i]
		vol += volumes[i]
		if vol != 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// OBV is on-balance volume starting at the first bar's volume.
func OBV(closes, volumes []float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n == 0 {
		return out
	}
	obv := volumes[0]
	out[0] = obv
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
		out[i] = obv
	}
	return out
}

// ADX is Wilder's average directional index, first defined at index
// 2*period-1.
func ADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	lookback := 2*period - 1
	if period <= 1 || n <= lookback {
		return out
	}

	p := float64(period)
	var plusDM, minusDM, tr float64

	directional := func(i int) (plus, minus float64) {
		diffP := highs[i] - highs[i-1]
		diffM := lows[i-1] - lows[i]
		if diffM > 0 && diffP < diffM {
			return 0, diffM
		}
		if diffP > 0 && diffP > diffM {
			return diffP, 0
		}
		return 0, 0
	}
	dx := func() (float64, bool) {
		if tr == 0 {
			return 0, false
		}
		plusDI := 100 * plusDM / tr
		minusDI := 100 * minusDM / tr
		sum := plusDI + minusDI
		if sum == 0 {
			return 0, false
		}
		return 100 * math.Abs(minusDI-plusDI) / sum, true
	}

	// Initial sums over the first period-1 moves
	for i := 1; i < period; i++ {
		plus, minus := directional(i)
		plusDM += plus
		minusDM += minus
		tr += trueRange(highs[i], lows[i], closes[i-1])
	}

	var sumDX float64
	for i := period; i <= lookback; i++ {
		plus, minus := directional(i)
		plusDM = plusDM - plusDM/p + plus
		minusDM = minusDM - minusDM/p + minus
		tr = tr - tr/p + trueRange(highs[i], lows[i], closes[i-1])
		if v, ok := dx(); ok {
			sumDX += v
		}
	}
	adx := sumDX / p
	out[lookback] = adx

	for i := lookback + 1; i < n; i++ {
		plus, minus := directional(i)
		plusDM = plusDM - plusDM/p + plus
		minusDM = minusDM - minusDM/p + minus
		tr = tr - tr/p + trueRange(highs[i], lows[i], closes[i-1])
		if v, ok := dx(); ok {
			adx = (adx*(p-1) + v) / p
		}
		out[i] = adx
	}
	return out
}

// Diff returns the first difference; index 0 is NaN.
func Diff(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
