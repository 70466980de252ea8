// Package series turns raw candles into the normalized, ordered series that is
// persisted and later read back by the indicator engine.
package series

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

// Options controls normalization.
type Options struct {
	Symbol     string
	Resolution models.Resolution

	// Location is the reporting timezone for DisplayTime; UTC when nil
	Location *time.Location

	// RequestedStart and RequestedEnd are recorded on the series for naming
	RequestedStart time.Time
	RequestedEnd   time.Time
}

// Normalize builds a Series from raw candles: rows are tagged with the symbol,
// given a UTC and a display timestamp, ordered ascending by epoch (stable, so
// duplicates keep their arrival order) and enriched with the price change
// columns. The input slice is not modified.
func Normalize(candles []models.Candle, opts Options) *models.Series {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	rows := make([]models.SeriesRow, 0, len(candles))
	for _, c := range candles {
		ts := c.Timestamp()
		row := models.SeriesRow{
			Symbol:      opts.Symbol,
			Time:        ts,
			DisplayTime: ts.In(loc),
			Epoch:       c.Time,
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			Volume:      c.Volume,
		}
		if change, ok := c.GetPriceChange(); ok {
			row.PriceChange = decimal.NewNullDecimal(change)
		}
		if pct, ok := c.GetPriceChangePercent(); ok {
			row.PriceChangePct = decimal.NewNullDecimal(pct)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Epoch < rows[j].Epoch
	})

	return &models.Series{
		Symbol:         opts.Symbol,
		Resolution:     opts.Resolution,
		RequestedStart: opts.RequestedStart,
		RequestedEnd:   opts.RequestedEnd,
		Rows:           rows,
	}
}
