package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/johnayoung/go-delta-candles/internal/errors"
	"github.com/johnayoung/go-delta-candles/internal/exchange"
	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

const component = "collector"

// Paginator walks a time range window by window and accumulates candles.
//
// A window that fails is logged and skipped; it never aborts the run. Only
// context cancellation stops the walk early, in which case the candles
// gathered so far are returned together with the context error.
type Paginator struct {
	fetcher exchange.CandleFetcher
	pacer   Pacer
	logger  *logger.ComponentLogger
}

// NewPaginator creates a paginator. A nil pacer disables pacing.
func NewPaginator(fetcher exchange.CandleFetcher, pacer Pacer, log *slog.Logger) *Paginator {
	if pacer == nil {
		pacer = noopPacer{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Paginator{
		fetcher: fetcher,
		pacer:   pacer,
		logger:  logger.Wrap(log, component),
	}
}

// Collect fetches every window of [start, end] for symbol at resolution.
// Every request, including the first, is preceded by a pacer wait.
func (p *Paginator) Collect(ctx context.Context, symbol string, resolution models.Resolution, start, end time.Time) ([]models.Candle, CollectStats, error) {
	if symbol == "" {
		return nil, CollectStats{}, apperrors.New(apperrors.ErrorTypeValidation, component, "collect",
			&models.ValidationError{Field: "symbol", Message: "symbol is required"})
	}
	if !resolution.Valid() {
		return nil, CollectStats{}, apperrors.New(apperrors.ErrorTypeValidation, component, "collect",
			&models.ValidationError{Field: "resolution", Message: fmt.Sprintf("unsupported resolution %q", resolution)})
	}

	duration := BatchDuration(resolution)
	windows := PlanWindows(start.Unix(), end.Unix(), duration)
	metrics := newMetricsCollector(len(windows))

	ctx = logger.WithSymbol(ctx, symbol)
	ctx = logger.WithResolution(ctx, string(resolution))

	p.logger.InfoWithContext(ctx, "collecting candles",
		"start", start.UTC().Format(time.RFC3339),
		"end", end.UTC().Format(time.RFC3339),
		"batch_seconds", duration,
		"windows", len(windows),
	)

	var candles []models.Candle
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return candles, metrics.snapshot(), err
		}
		if err := p.pacer.Wait(ctx); err != nil {
			return candles, metrics.snapshot(), err
		}

		requestStart := time.Now()
		batch, err := p.fetcher.FetchCandles(ctx, exchange.FetchRequest{
			Symbol:     symbol,
			Resolution: resolution,
			Window:     window,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return candles, metrics.snapshot(), ctxErr
			}
			metrics.recordFailure(time.Since(requestStart))
			p.logger.WarnWithContext(ctx, "window failed, skipping",
				"window_start", window.Start,
				"window_end", window.End,
				"error_type", apperrors.GetErrorType(err),
				"error", err,
			)
		} else {
			metrics.recordSuccess(len(batch), time.Since(requestStart))
			candles = append(candles, batch...)
			p.logger.Debug("window fetched",
				"symbol", symbol,
				"window", fmt.Sprintf("%d/%d", i+1, len(windows)),
				"count", len(batch),
				"total", len(candles),
			)
		}
	}

	stats := metrics.snapshot()
	p.logger.InfoWithContext(ctx, "collection finished",
		"candles", len(candles),
		"windows_failed", stats.WindowsFailed,
		"duration", stats.Duration,
	)

	return candles, stats, nil
}
