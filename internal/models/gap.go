package models

import (
	"fmt"
	"time"
)

// Gap is a run of candles missing between two consecutive rows of a series.
// Gaps are reported only; the series is never interpolated to fill them.
type Gap struct {
	// Symbol is the instrument the gap belongs to
	Symbol string `json:"symbol"`

	// Resolution is the candle width used to measure the gap
	Resolution Resolution `json:"resolution"`

	// StartTime is the first missing bucket start in UTC
	StartTime time.Time `json:"start_time"`

	// EndTime is the bucket start of the next candle that was present
	EndTime time.Time `json:"end_time"`

	// Missing is the number of candles absent between StartTime and EndTime
	Missing int `json:"missing"`
}

// NewGap builds a Gap between the last present candle before the hole and the
// first present candle after it.
func NewGap(symbol string, resolution Resolution, prev, next time.Time) (*Gap, error) {
	step := resolution.Duration()
	if step <= 0 {
		return nil, &ValidationError{Field: "resolution", Message: fmt.Sprintf("unsupported resolution %q", resolution)}
	}
	start := prev.Add(step)
	if !next.After(start) {
		return nil, &ValidationError{Field: "end_time", Message: "next candle does not leave a gap"}
	}
	return &Gap{
		Symbol:     symbol,
		Resolution: resolution,
		StartTime:  start,
		EndTime:    next,
		Missing:    int(next.Sub(start) / step),
	}, nil
}

// Duration returns the span of the gap.
func (g *Gap) Duration() time.Duration {
	return g.EndTime.Sub(g.StartTime)
}

// String returns a human-readable representation of the gap.
func (g *Gap) String() string {
	return fmt.Sprintf("Gap{Symbol: %s, Resolution: %s, Start: %s, End: %s, Missing: %d}",
		g.Symbol, g.Resolution, g.StartTime.Format(time.RFC3339), g.EndTime.Format(time.RFC3339), g.Missing)
}
