package indicators

import "github.com/johnayoung/go-delta-candles/internal/models"

// Label thresholds
const (
	RSIOverboughtLevel = 60.0
	RSIOversoldLevel   = 40.0
	RSIMidline         = 50.0
	ADXStrongLevel     = 25.0
)

const noData = "No Data"

// RSISignal classifies an RSI reading.
type RSISignal int

const (
	RSINoData RSISignal = iota
	RSIOverbought
	RSIOversold
	RSINeutral
)

func (s RSISignal) String() string {
	switch s {
	case RSIOverbought:
		return "Overbought"
	case RSIOversold:
		return "Oversold"
	case RSINeutral:
		return "Neutral"
	default:
		return noData
	}
}

// ClassifyRSI labels an RSI value; both thresholds are inclusive.
func ClassifyRSI(rsi models.Value) RSISignal {
	v, ok := rsi.Get()
	switch {
	case !ok:
		return RSINoData
	case v >= RSIOverboughtLevel:
		return RSIOverbought
	case v <= RSIOversoldLevel:
		return RSIOversold
	default:
		return RSINeutral
	}
}

// RSIAboveMidline reports RSI > 50; an absent RSI is false.
func RSIAboveMidline(rsi models.Value) bool {
	above, _ := rsi.GreaterThan(models.Some(RSIMidline))
	return above
}

// Slope is the direction of a one-bar change.
type Slope int

const (
	SlopeNoData Slope = iota
	SlopeRising
	SlopeFalling
	SlopeFlat
)

func (s Slope) String() string {
	switch s {
	case SlopeRising:
		return "Rising"
	case SlopeFalling:
		return "Falling"
	case SlopeFlat:
		return "Flat"
	default:
		return noData
	}
}

// ClassifySlope labels a first difference.
func ClassifySlope(diff models.Value) Slope {
	v, ok := diff.Get()
	switch {
	case !ok:
		return SlopeNoData
	case v > 0:
		return SlopeRising
	case v < 0:
		return SlopeFalling
	default:
		return SlopeFlat
	}
}

// Position is where one series sits relative to another.
type Position int

const (
	PositionNoData Position = iota
	PositionAbove
	PositionBelow
	PositionInside
)

func (p Position) String() string {
	switch p {
	case PositionAbove:
		return "Above"
	case PositionBelow:
		return "Below"
	case PositionInside:
		return "Inside"
	default:
		return noData
	}
}

// CompareToReference labels value against ref. Above requires value > ref;
// otherwise the result is Below when ref exists and No Data when it does not.
func CompareToReference(value, ref models.Value) Position {
	if above, _ := value.GreaterThan(ref); above {
		return PositionAbove
	}
	if ref.Valid() {
		return PositionBelow
	}
	return PositionNoData
}

// ComparePair labels a against b, with No Data unless both exist.
func ComparePair(a, b models.Value) Position {
	above, ok := a.GreaterThan(b)
	switch {
	case !ok:
		return PositionNoData
	case above:
		return PositionAbove
	default:
		return PositionBelow
	}
}

// CompareToVWAP labels close against VWAP. Anything not strictly above is
// Below, including absent inputs.
func CompareToVWAP(close, vwap models.Value) Position {
	if above, _ := close.GreaterThan(vwap); above {
		return PositionAbove
	}
	return PositionBelow
}

// ClassifyBands labels close against the Bollinger bands. Absent inputs count
// as Inside.
func ClassifyBands(close, upper, lower models.Value) Position {
	if above, _ := close.GreaterThan(upper); above {
		return PositionAbove
	}
	if below, _ := close.LessThan(lower); below {
		return PositionBelow
	}
	return PositionInside
}

// CrossSignal classifies the relation of a fast and a slow line across two
// consecutive bars.
type CrossSignal int

const (
	CrossNoData CrossSignal = iota
	CrossBullish
	CrossBearish
	CrossBullishTrend
	CrossBearishTrend
	CrossNeutral
)

func (c CrossSignal) String() string {
	switch c {
	case CrossBullish:
		return "Bullish Cross"
	case CrossBearish:
		return "Bearish Cross"
	case CrossBullishTrend:
		return "Bullish"
	case CrossBearishTrend:
		return "Bearish"
	case CrossNeutral:
		return "Neutral"
	default:
		return noData
	}
}

// ClassifyCross labels every bar from the fast and slow series. The first bar
// and any bar where the current or previous value of either line is absent is
// No Data. The slices must have equal length.
func ClassifyCross(fast, slow []models.Value) []CrossSignal {
	out := make([]CrossSignal, len(fast))
	for i := 1; i < len(fast) && i < len(slow); i++ {
		f, okF := fast[i].Get()
		s, okS := slow[i].Get()
		pf, okPF := fast[i-1].Get()
		ps, okPS := slow[i-1].Get()
		if !okF || !okS || !okPF || !okPS {
			continue
		}
		switch {
		case f > s && pf <= ps:
			out[i] = CrossBullish
		case f < s && pf >= ps:
			out[i] = CrossBearish
		case f > s:
			out[i] = CrossBullishTrend
		case f < s:
			out[i] = CrossBearishTrend
		default:
			out[i] = CrossNeutral
		}
	}
	return out
}

// Momentum is a binary bullish/bearish reading.
type Momentum int

const (
	MomentumBearish Momentum = iota
	MomentumBullish
)

func (m Momentum) String() string {
	if m == MomentumBullish {
		return "Bullish"
	}
	return "Bearish"
}

// ClassifyMACD is Bullish only when the MACD line is strictly above its
// signal line.
func ClassifyMACD(line, signal models.Value) Momentum {
	if above, _ := line.GreaterThan(signal); above {
		return MomentumBullish
	}
	return MomentumBearish
}

// Flow is the direction of on-balance volume.
type Flow int

const (
	FlowNeutral Flow = iota
	FlowIncreasing
	FlowDecreasing
)

func (f Flow) String() string {
	switch f {
	case FlowIncreasing:
		return "Increasing"
	case FlowDecreasing:
		return "Decreasing"
	default:
		return "Neutral"
	}
}

// ClassifyFlow labels an OBV difference; absent is Neutral.
func ClassifyFlow(diff models.Value) Flow {
	v, ok := diff.Get()
	switch {
	case ok && v > 0:
		return FlowIncreasing
	case ok && v < 0:
		return FlowDecreasing
	default:
		return FlowNeutral
	}
}

// Strength is the ADX trend strength.
type Strength int

const (
	StrengthWeak Strength = iota
	StrengthStrong
)

func (s Strength) String() string {
	if s == StrengthStrong {
		return "Strong"
	}
	return "Weak"
}

// ClassifyADX labels ADX > 25 as Strong.
//
// An absent ADX (the first 27 bars) reads Weak instead of No Data. Existing
// output files depend on that, but it is probably wrong; other labels must not
// copy it.
func ClassifyADX(adx models.Value) Strength {
	if strong, _ := adx.GreaterThan(models.Some(ADXStrongLevel)); strong {
		return StrengthStrong
	}
	return StrengthWeak
}
