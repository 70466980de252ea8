package collector

import (
	"github.com/johnayoung/go-delta-candles/internal/models"
)

// MaxCandlesPerRequest keeps each request below the API's 2000 candle limit.
const MaxCandlesPerRequest = 1800

const secondsPerDay = 86400

// dayBounds are the [min, max] window lengths in days for each tier.
var dayBounds = map[models.Tier][2]float64{
	models.TierMinute: {1, 5},
	models.TierHour:   {7, 30},
	models.TierDay:    {30, 365},
}

// BatchDuration returns the length in seconds of one request window for the
// resolution: MaxCandlesPerRequest candles, clamped to the tier's day bounds.
// Unknown resolutions are treated as one minute.
func BatchDuration(resolution models.Resolution) int64 {
	minutes := resolution.Minutes()
	if minutes == 0 {
		minutes = 1
		resolution = models.Resolution1m
	}

	days := float64(MaxCandlesPerRequest*minutes) / 1440
	bounds := dayBounds[resolution.Tier()]
	if days < bounds[0] {
		days = bounds[0]
	}
	if days > bounds[1] {
		days = bounds[1]
	}

	return int64(days * secondsPerDay)
}

// PlanWindows splits [start, end] into consecutive request windows of at most
// duration seconds. Each window after the first starts one second past the
// previous window's end, so no instant is requested twice.
func PlanWindows(start, end, duration int64) []models.FetchWindow {
	if duration <= 0 || end <= start {
		return nil
	}

	var windows []models.FetchWindow
	for current := start; current < end; {
		windowEnd := current + duration
		if windowEnd > end {
			windowEnd = end
		}
		windows = append(windows, models.FetchWindow{Start: current, End: windowEnd})
		current = windowEnd + 1
	}
	return windows
}
