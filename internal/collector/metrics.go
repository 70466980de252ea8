package collector

import (
	"sync/atomic"
	"time"
)

// CollectStats summarizes one pagination run.
type CollectStats struct {
	WindowsPlanned   int64         `json:"windows_planned"`
	WindowsFetched   int64         `json:"windows_fetched"`
	WindowsFailed    int64         `json:"windows_failed"`
	WindowsEmpty     int64         `json:"windows_empty"`
	CandlesCollected int64         `json:"candles_collected"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	Duration         time.Duration `json:"duration"`
}

// SuccessRate is the share of attempted windows that returned without error.
func (s CollectStats) SuccessRate() float64 {
	attempted := s.WindowsFetched + s.WindowsFailed
	if attempted == 0 {
		return 0
	}
	return float64(s.WindowsFetched) / float64(attempted)
}

// metricsCollector tracks collection counters for a single run
type metricsCollector struct {
	windowsPlanned   int64
	windowsFetched   int64
	windowsFailed    int64
	windowsEmpty     int64
	candlesCollected int64

	// Response time tracking
	totalResponseTime int64 // nanoseconds
	responseCount     int64

	startTime time.Time
}

// newMetricsCollector creates a new metrics collector
func newMetricsCollector(planned int) *metricsCollector {
	return &metricsCollector{
		windowsPlanned: int64(planned),
		startTime:      time.Now(),
	}
}

// recordSuccess records a window that returned candles (possibly none)
func (m *metricsCollector) recordSuccess(count int, duration time.Duration) {
	atomic.AddInt64(&m.windowsFetched, 1)
	atomic.AddInt64(&m.candlesCollected, int64(count))
	if count == 0 {
		atomic.AddInt64(&m.windowsEmpty, 1)
	}
	m.recordResponseTime(duration)
}

// recordFailure records a window that was skipped
func (m *metricsCollector) recordFailure(duration time.Duration) {
	atomic.AddInt64(&m.windowsFailed, 1)
	m.recordResponseTime(duration)
}

func (m *metricsCollector) recordResponseTime(duration time.Duration) {
	atomic.AddInt64(&m.totalResponseTime, duration.Nanoseconds())
	atomic.AddInt64(&m.responseCount, 1)
}

// snapshot returns the current counters
func (m *metricsCollector) snapshot() CollectStats {
	totalResponseTime := atomic.LoadInt64(&m.totalResponseTime)
	responseCount := atomic.LoadInt64(&m.responseCount)

	var avgResponseTime time.Duration
	if responseCount > 0 {
		avgResponseTime = time.Duration(totalResponseTime / responseCount)
	}

	return CollectStats{
		WindowsPlanned:   atomic.LoadInt64(&m.windowsPlanned),
		WindowsFetched:   atomic.LoadInt64(&m.windowsFetched),
		WindowsFailed:    atomic.LoadInt64(&m.windowsFailed),
		WindowsEmpty:     atomic.LoadInt64(&m.windowsEmpty),
		CandlesCollected: atomic.LoadInt64(&m.candlesCollected),
		AvgResponseTime:  avgResponseTime,
		Duration:         time.Since(m.startTime),
	}
}
