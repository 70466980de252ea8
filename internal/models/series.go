package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeriesRow is one normalized candle ready to be persisted.
type SeriesRow struct {
	Symbol      string
	Time        time.Time // UTC bucket start
	DisplayTime time.Time // Time in the reporting timezone
	Epoch       int64

	Open   Value
	High   Value
	Low    Value
	Close  Value
	Volume Value

	PriceChange    decimal.NullDecimal
	PriceChangePct decimal.NullDecimal
}

// Series is the ordered candle sequence collected for one symbol over the
// requested range.
type Series struct {
	Symbol         string
	Resolution     Resolution
	RequestedStart time.Time
	RequestedEnd   time.Time
	Rows           []SeriesRow
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Empty reports whether the series holds no rows.
func (s *Series) Empty() bool {
	return s.Len() == 0
}

// PriceRange returns the lowest low and highest high over the series.
func (s *Series) PriceRange() (low, high Value) {
	for _, row := range s.Rows {
		if l, ok := row.Low.Get(); ok {
			if cur, set := low.Get(); !set || l < cur {
				low = Some(l)
			}
		}
		if h, ok := row.High.Get(); ok {
			if cur, set := high.Get(); !set || h > cur {
				high = Some(h)
			}
		}
	}
	return low, high
}

// TotalVolume sums every present volume.
func (s *Series) TotalVolume() float64 {
	var total float64
	for _, row := range s.Rows {
		if v, ok := row.Volume.Get(); ok {
			total += v
		}
	}
	return total
}
