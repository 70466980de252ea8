// Package gaps reports holes in a normalized candle series.
//
// A gap is any spacing between consecutive rows wider than one resolution
// unit. Gaps are reported so the operator can rerun a fetch; the series itself
// is never backfilled or interpolated.
package gaps

import (
	"log/slog"
	"time"

	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

// Detector finds gaps in series.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a gap detector
func NewDetector(log *slog.Logger) *Detector {
	if log == nil {
		log = logger.Discard()
	}
	return &Detector{logger: log}
}

// DetectInSeries analyzes the rows of a series, which must already be sorted
// ascending by time, and returns every gap between consecutive rows.
func (d *Detector) DetectInSeries(series *models.Series) []models.Gap {
	if series.Len() < 2 {
		return nil
	}

	step := series.Resolution.Duration()
	if step <= 0 {
		d.logger.Warn("cannot detect gaps for unknown resolution", "resolution", series.Resolution)
		return nil
	}

	var gaps []models.Gap
	for i := 0; i < len(series.Rows)-1; i++ {
		current := series.Rows[i].Time
		next := series.Rows[i+1].Time

		if next.Sub(current) <= step {
			continue
		}

		gap, err := models.NewGap(series.Symbol, series.Resolution, current, next)
		if err != nil {
			d.logger.Warn("failed to create gap",
				"symbol", series.Symbol,
				"after", current.Format(time.RFC3339),
				"error", err,
			)
			continue
		}
		gaps = append(gaps, *gap)
	}

	return gaps
}

// MissingCandles sums the missing candle count over gaps.
func MissingCandles(gaps []models.Gap) int {
	total := 0
	for _, gap := range gaps {
		total += gap.Missing
	}
	return total
}
