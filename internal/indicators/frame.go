package indicators

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/storage"
)

// Indicator parameters
const (
	RSIPeriod      = 14
	SMAPeriod      = 50
	EMAFastPeriod  = 9
	EMASlowPeriod  = 21
	ATRPeriod      = 14
	MACDFastPeriod = 12
	MACDSlowPeriod = 26
	MACDSignalLen  = 9
	BBPeriod       = 20
	BBDeviations   = 2.0
	ADXPeriod      = 14
	datetimeColumn = "datetime"
)

// RequiredColumns must be present in every input table.
var RequiredColumns = []string{"datetime", "open", "high", "low", "close", "volume"}

var datetimeLayouts = []string{
	storage.DateTimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Bar is one input row.
type Bar struct {
	Time   time.Time
	Open   models.Value
	High   models.Value
	Low    models.Value
	Close  models.Value
	Volume models.Value
}

// Frame holds every computed indicator aligned with Bars; absent entries mark
// warm-up bars or bars whose inputs were missing.
type Frame struct {
	Bars []Bar

	RSI         []models.Value
	RSIMomentum []models.Value
	SMA         []models.Value
	SMAChange   []models.Value
	EMAFast     []models.Value
	EMASlow     []models.Value
	EMACross    []CrossSignal
	ATR         []models.Value
	MACD        []models.Value
	MACDSignal  []models.Value
	MACDHist    []models.Value
	BBUpper     []models.Value
	BBMiddle    []models.Value
	BBLower     []models.Value
	VWAP        []models.Value
	OBV         []models.Value
	OBVChange   []models.Value
	ADX         []models.Value
}

// Len returns the number of bars.
func (f *Frame) Len() int {
	return len(f.Bars)
}

func toValues(xs []float64) []models.Value {
	out := make([]models.Value, len(xs))
	for i, x := range xs {
		out[i] = models.Some(x)
	}
	return out
}

func floats(bars []Bar, pick func(Bar) models.Value) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = pick(b).Float()
	}
	return out
}

// Compute evaluates the full indicator set over bars, which must already be in
// ascending time order.
func Compute(bars []Bar) *Frame {
	high := floats(bars, func(b Bar) models.Value { return b.High })
	low := floats(bars, func(b Bar) models.Value { return b.Low })
	closes := floats(bars, func(b Bar) models.Value { return b.Close })
	volume := floats(bars, func(b Bar) models.Value { return b.Volume })

	rsi := RSI(closes, RSIPeriod)
	sma := SMA(closes, SMAPeriod)
	obv := OBV(closes, volume)
	macd := MACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalLen)
	bands := BollingerBands(closes, BBPeriod, BBDeviations)

	f := &Frame{
		Bars:        bars,
		RSI:         toValues(rsi),
		RSIMomentum: toValues(Diff(rsi)),
		SMA:         toValues(sma),
		SMAChange:   toValues(Diff(sma)),
		EMAFast:     toValues(EMA(closes, EMAFastPeriod)),
		EMASlow:     toValues(EMA(closes, EMASlowPeriod)),
		ATR:         toValues(ATR(high, low, closes, ATRPeriod)),
		MACD:        toValues(macd.Line),
		MACDSignal:  toValues(macd.Signal),
		MACDHist:    toValues(macd.Hist),
		BBUpper:     toValues(bands.Upper),
		BBMiddle:    toValues(bands.Middle),
		BBLower:     toValues(bands.Lower),
		VWAP:        toValues(VWAP(high, low, closes, volume)),
		OBV:         toValues(obv),
		OBVChange:   toValues(Diff(obv)),
		ADX:         toValues(ADX(high, low, closes, ADXPeriod)),
	}
	f.EMACross = ClassifyCross(f.EMAFast, f.EMASlow)
	return f
}

// ParseDateTime accepts the series file layout plus common ISO variants. A
// value without a zone is read as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// BarsFromTable converts a loaded table into bars sorted by time. Numeric
// cells that do not parse become absent; an unparseable datetime fails the
// table.
func BarsFromTable(table *storage.Table) ([]Bar, error) {
	bars := make([]Bar, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		ts, err := ParseDateTime(table.Get(i, datetimeColumn))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		bars = append(bars, Bar{
			Time:   ts,
			Open:   models.ParseValue(table.Get(i, "open")),
			High:   models.ParseValue(table.Get(i, "high")),
			Low:    models.ParseValue(table.Get(i, "low")),
			Close:  models.ParseValue(table.Get(i, "close")),
			Volume: models.ParseValue(table.Get(i, "volume")),
		})
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	return bars, nil
}
