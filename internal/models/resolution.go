package models

import (
	"fmt"
	"time"
)

// Resolution is the bucket width of a candle as understood by the history API.
type Resolution string

const (
	Resolution1m  Resolution = "1m"
	Resolution3m  Resolution = "3m"
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution30m Resolution = "30m"
	Resolution1h  Resolution = "1h"
	Resolution2h  Resolution = "2h"
	Resolution4h  Resolution = "4h"
	Resolution6h  Resolution = "6h"
	Resolution1d  Resolution = "1d"
	Resolution1w  Resolution = "1w"
)

// Tier groups resolutions that share a batch window clamp range.
type Tier int

const (
	TierMinute Tier = iota
	TierHour
	TierDay
)

func (t Tier) String() string {
	switch t {
	case TierMinute:
		return "minute"
	case TierHour:
		return "hour"
	case TierDay:
		return "day"
	default:
		return "unknown"
	}
}

type resolutionInfo struct {
	minutes int
	label   string
	tier    Tier
}

// 15m and 30m sit in the hour tier together with 1h; 2h and above use the day tier.
var resolutions = map[Resolution]resolutionInfo{
	Resolution1m:  {minutes: 1, label: "1 minute", tier: TierMinute},
	Resolution3m:  {minutes: 3, label: "3 minutes", tier: TierMinute},
	Resolution5m:  {minutes: 5, label: "5 minutes", tier: TierMinute},
	Resolution15m: {minutes: 15, label: "15 minutes", tier: TierHour},
	Resolution30m: {minutes: 30, label: "30 minutes", tier: TierHour},
	Resolution1h:  {minutes: 60, label: "1 hour", tier: TierHour},
	Resolution2h:  {minutes: 120, label: "2 hours", tier: TierDay},
	Resolution4h:  {minutes: 240, label: "4 hours", tier: TierDay},
	Resolution6h:  {minutes: 360, label: "6 hours", tier: TierDay},
	Resolution1d:  {minutes: 1440, label: "1 day", tier: TierDay},
	Resolution1w:  {minutes: 10080, label: "1 week", tier: TierDay},
}

var resolutionOrder = []Resolution{
	Resolution1m, Resolution3m, Resolution5m, Resolution15m, Resolution30m,
	Resolution1h, Resolution2h, Resolution4h, Resolution6h, Resolution1d, Resolution1w,
}

// AllResolutions returns every supported resolution from finest to coarsest.
func AllResolutions() []Resolution {
	out := make([]Resolution, len(resolutionOrder))
	copy(out, resolutionOrder)
	return out
}

// ParseResolution validates s against the supported set.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if _, ok := resolutions[r]; !ok {
		return "", &ValidationError{Field: "resolution", Message: fmt.Sprintf("unsupported resolution %q", s)}
	}
	return r, nil
}

// Valid reports whether r is one of the supported resolutions.
func (r Resolution) Valid() bool {
	_, ok := resolutions[r]
	return ok
}

// Minutes returns the candle width in minutes, or 0 for an unknown resolution.
func (r Resolution) Minutes() int {
	return resolutions[r].minutes
}

// Duration returns the candle width.
func (r Resolution) Duration() time.Duration {
	return time.Duration(r.Minutes()) * time.Minute
}

// Label returns the human readable name, e.g. "15 minutes".
func (r Resolution) Label() string {
	if info, ok := resolutions[r]; ok {
		return info.label
	}
	return string(r)
}

// Tier returns the window planning tier of r.
func (r Resolution) Tier() Tier {
	return resolutions[r].tier
}

func (r Resolution) String() string {
	return string(r)
}
