// Package collector drives historical candle collection: it plans request
// windows, paces and paginates through them, and runs the per-symbol pipeline
// from raw candles to a persisted series.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/johnayoung/go-delta-candles/internal/exchange"
	"github.com/johnayoung/go-delta-candles/internal/gaps"
	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/series"
	"github.com/johnayoung/go-delta-candles/internal/storage"
	"github.com/johnayoung/go-delta-candles/internal/validator"
)

// ErrNoData is recorded on a symbol whose every window came back empty or failed.
var ErrNoData = errors.New("no candles retrieved")

// Config holds the orchestration settings for one run
type Config struct {
	Resolution models.Resolution

	// Lookback is how far back from now the requested range starts
	Lookback time.Duration

	// SymbolPause is slept between consecutive symbols
	SymbolPause time.Duration

	// Location is the reporting timezone for display timestamps
	Location *time.Location

	// Now overrides the clock, for tests
	Now func() time.Time
}

// SymbolResult is the outcome of collecting one symbol
type SymbolResult struct {
	Symbol         string        `json:"symbol"`
	Rows           int           `json:"rows"`
	File           string        `json:"file,omitempty"`
	Gaps           []models.Gap  `json:"gaps,omitempty"`
	MissingCandles int           `json:"missing_candles"`
	Anomalies      int           `json:"anomalies"`
	Stats          CollectStats  `json:"stats"`
	Duration       time.Duration `json:"duration"`
	Err            error         `json:"-"`
}

// OK reports whether the symbol produced a written series.
func (r SymbolResult) OK() bool {
	return r.Err == nil && r.File != ""
}

// RunReport summarizes a multi-symbol run
type RunReport struct {
	RunID      string            `json:"run_id"`
	Resolution models.Resolution `json:"resolution"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []SymbolResult    `json:"results"`
}

// Succeeded counts the symbols that produced a written series.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// TotalRows sums the rows written across symbols.
func (r *RunReport) TotalRows() int {
	total := 0
	for _, res := range r.Results {
		total += res.Rows
	}
	return total
}

// Files lists the written series files in symbol order.
func (r *RunReport) Files() []string {
	var files []string
	for _, res := range r.Results {
		if res.File != "" {
			files = append(files, res.File)
		}
	}
	return files
}

// Orchestrator runs the fetch pipeline for a list of symbols, one at a time.
type Orchestrator struct {
	config    Config
	paginator *Paginator
	writer    storage.SeriesWriter
	mirror    storage.Mirror
	validator *validator.OHLCVValidator
	gaps      *gaps.Detector
	logger    *logger.ComponentLogger
}

// NewOrchestrator wires the pipeline. mirror may be nil.
func NewOrchestrator(cfg Config, fetcher exchange.CandleFetcher, pacer Pacer, writer storage.SeriesWriter, mirror storage.Mirror, log *slog.Logger) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("candle fetcher is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("series writer is required")
	}
	if !cfg.Resolution.Valid() {
		return nil, fmt.Errorf("unsupported resolution %q", cfg.Resolution)
	}
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive, got %s", cfg.Lookback)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Orchestrator{
		config:    cfg,
		paginator: NewPaginator(fetcher, pacer, log),
		writer:    writer,
		mirror:    mirror,
		validator: validator.NewOHLCVValidator(log),
		gaps:      gaps.NewDetector(log),
		logger:    logger.Wrap(log, component),
	}, nil
}

// Run processes every symbol in order. Per-symbol failures are recorded in
// the report; only cancellation ends the run early and is returned as error.
// A run id already present in ctx is reused, otherwise a new one is minted.
func (o *Orchestrator) Run(ctx context.Context, symbols []string) (*RunReport, error) {
	runID := logger.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}

	end := o.config.Now().UTC().Truncate(time.Second)
	report := &RunReport{
		RunID:      runID,
		Resolution: o.config.Resolution,
		Start:      end.Add(-o.config.Lookback),
		End:        end,
		StartedAt:  time.Now(),
	}
	o.logger.InfoWithContext(ctx, "starting collection run",
		"symbols", symbols,
		"resolution", o.config.Resolution,
		"start", report.Start.Format(time.RFC3339),
		"end", report.End.Format(time.RFC3339),
	)

	for i, symbol := range symbols {
		if i > 0 && o.config.SymbolPause > 0 {
			select {
			case <-ctx.Done():
				report.FinishedAt = time.Now()
				return report, ctx.Err()
			case <-time.After(o.config.SymbolPause):
			}
		}

		result := o.processSymbol(logger.WithSymbol(ctx, symbol), report, symbol)
		report.Results = append(report.Results, result)

		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			o.logger.WarnWithContext(ctx, "collection run interrupted", "completed_symbols", i)
			return report, err
		}
	}

	report.FinishedAt = time.Now()
	o.logger.InfoWithContext(ctx, "collection run finished",
		"symbols", len(symbols),
		"succeeded", report.Succeeded(),
		"rows", report.TotalRows(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

func (o *Orchestrator) processSymbol(ctx context.Context, report *RunReport, symbol string) SymbolResult {
	started := time.Now()
	result := SymbolResult{Symbol: symbol}

	candles, stats, err := o.paginator.Collect(ctx, symbol, o.config.Resolution, report.Start, report.End)
	result.Stats = stats
	if err != nil {
		// Cancelled mid-symbol: nothing is written for a partial range
		result.Err = err
		result.Duration = time.Since(started)
		return result
	}
	if len(candles) == 0 {
		o.logger.WarnWithContext(ctx, "no data retrieved", "windows_failed", stats.WindowsFailed)
		result.Err = ErrNoData
		result.Duration = time.Since(started)
		return result
	}

	normalized := series.Normalize(candles, series.Options{
		Symbol:         symbol,
		Resolution:     o.config.Resolution,
		Location:       o.config.Location,
		RequestedStart: report.Start,
		RequestedEnd:   report.End,
	})
	result.Rows = normalized.Len()

	validation := o.validator.ValidateSeries(normalized)
	result.Anomalies = len(validation.Anomalies)

	result.Gaps = o.gaps.DetectInSeries(normalized)
	result.MissingCandles = gaps.MissingCandles(result.Gaps)
	if len(result.Gaps) > 0 {
		o.logger.WarnWithContext(ctx, "series has gaps",
			"gaps", len(result.Gaps),
			"missing_candles", result.MissingCandles,
		)
	}

	path, err := o.writer.WriteSeries(normalized)
	if err != nil {
		o.logger.ErrorWithContext(ctx, "failed to write series", err)
		result.Err = err
		result.Duration = time.Since(started)
		return result
	}
	result.File = path

	if o.mirror != nil {
		if err := o.mirror.StoreSeries(ctx, report.RunID, normalized, result.Gaps); err != nil {
			o.logger.WarnWithContext(ctx, "failed to mirror series", "error", err)
		}
	}

	low, high := normalized.PriceRange()
	first, last := normalized.Rows[0], normalized.Rows[len(normalized.Rows)-1]
	o.logger.InfoWithContext(ctx, "symbol collected",
		"rows", result.Rows,
		"from", first.DisplayTime.Format(storage.DateTimeLayout),
		"to", last.DisplayTime.Format(storage.DateTimeLayout),
		"low", low,
		"high", high,
		"volume", normalized.TotalVolume(),
		"anomalies", result.Anomalies,
		"file", path,
	)

	result.Duration = time.Since(started)
	return result
}
