// Package models provides the data structures shared by the fetch pipeline and
// the indicator engine: resolutions, wire candles, fetch windows, normalized
// series and the data quality records attached to them.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV record as returned by the history endpoint. Time is the
// exchange-assigned bucket start in epoch seconds.
type Candle struct {
	Time   int64 `json:"time"`
	Open   Value `json:"open"`
	High   Value `json:"high"`
	Low    Value `json:"low"`
	Close  Value `json:"close"`
	Volume Value `json:"volume"`
}

// ValidationError represents a validation failure on a specific field.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message explains the failure
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Timestamp returns the bucket start as a UTC time.
func (c Candle) Timestamp() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// GetPriceChange calculates Close - Open using decimal arithmetic so that the
// written value does not pick up binary rounding noise.
func (c Candle) GetPriceChange() (decimal.Decimal, bool) {
	open, okO := c.Open.Get()
	closePrice, okC := c.Close.Get()
	if !okO || !okC {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(closePrice).Sub(decimal.NewFromFloat(open)), true
}

// GetPriceChangePercent calculates ((Close - Open) / Open) * 100 rounded
// half-to-even to 4 decimals. It reports false when open is zero or either
// price is missing.
func (c Candle) GetPriceChangePercent() (decimal.Decimal, bool) {
	open, ok := c.Open.Get()
	if !ok || open == 0 {
		return decimal.Zero, false
	}
	change, ok := c.GetPriceChange()
	if !ok {
		return decimal.Zero, false
	}
	hundred := decimal.NewFromInt(100)
	return change.Div(decimal.NewFromFloat(open)).Mul(hundred).RoundBank(4), true
}

// String returns a human-readable representation of the candle.
func (c Candle) String() string {
	return fmt.Sprintf("Candle{Time: %s, O: %s, H: %s, L: %s, C: %s, V: %s}",
		c.Timestamp().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
}

// FetchWindow is one bounded request range [Start, End] in epoch seconds.
// Both bounds are passed to the API as given.
type FetchWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Validate checks that the window is non-empty.
func (w FetchWindow) Validate() error {
	if w.End <= w.Start {
		return &ValidationError{
			Field:   "end",
			Message: fmt.Sprintf("window end (%d) must be after start (%d)", w.End, w.Start),
		}
	}
	return nil
}

func (w FetchWindow) String() string {
	return fmt.Sprintf("[%d,%d]", w.Start, w.End)
}
