package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive upstream requests.
type Pacer interface {
	// Wait blocks until the next request may start or ctx is done.
	Wait(ctx context.Context) error
}

// RatePacer enforces a minimum interval between the starts of consecutive
// paced operations. The burst is one, so there is no queueing of credit: the
// first Wait returns at once and each later one blocks until the interval
// since the previous Wait has passed. Callers wait before an operation, not
// after it.
type RatePacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewRatePacer creates a pacer allowing at most rps operations per second.
func NewRatePacer(rps float64) (*RatePacer, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("requests per second must be greater than 0, got %v", rps)
	}
	interval := time.Duration(float64(time.Second) / rps)
	return NewIntervalPacer(interval), nil
}

// NewIntervalPacer creates a pacer with an explicit minimum interval.
func NewIntervalPacer(interval time.Duration) *RatePacer {
	return &RatePacer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait implements Pacer
func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the minimum spacing between operations.
func (p *RatePacer) Interval() time.Duration {
	return p.interval
}

// noopPacer never waits; used when no pacer is supplied.
type noopPacer struct{}

func (noopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
