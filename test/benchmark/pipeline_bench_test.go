// Package benchmark provides performance benchmarks for the series pipeline:
// normalization, CSV output, database mirrors and indicator computation over
// a ten day 1m series.
package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/johnayoung/go-delta-candles/internal/gaps"
	"github.com/johnayoung/go-delta-candles/internal/indicators"
	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/series"
	"github.com/johnayoung/go-delta-candles/internal/storage"
	"github.com/johnayoung/go-delta-candles/internal/validator"
)

// Ten days of one-minute candles
const benchCandles = 10 * 24 * 60

var benchStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func generateTestCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		price := 2300 + float64(i%31) - 15 + float64(i)*0.001
		// Newest first, as the exchange returns them
		candles[n-1-i] = models.Candle{
			Time:   benchStart.Add(time.Duration(i) * time.Minute).Unix(),
			Open:   models.Some(price - 0.4),
			High:   models.Some(price + 1),
			Low:    models.Some(price - 1),
			Close:  models.Some(price),
			Volume: models.Some(5 + float64(i%11)),
		}
	}
	return candles
}

func normalized(n int) *models.Series {
	return series.Normalize(generateTestCandles(n), series.Options{
		Symbol:         "ETHUSD",
		Resolution:     models.Resolution1m,
		RequestedStart: benchStart,
		RequestedEnd:   benchStart.Add(time.Duration(n) * time.Minute),
	})
}

// BenchmarkNormalize measures sorting and price change derivation
func BenchmarkNormalize(b *testing.B) {
	candles := generateTestCandles(benchCandles)
	opts := series.Options{Symbol: "ETHUSD", Resolution: models.Resolution1m}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		series.Normalize(candles, opts)
	}
	b.ReportMetric(float64(benchCandles*b.N)/b.Elapsed().Seconds(), "candles/sec")
}

// BenchmarkQualityChecks measures validation plus gap detection
func BenchmarkQualityChecks(b *testing.B) {
	s := normalized(benchCandles)
	v := validator.NewOHLCVValidator(nil)
	d := gaps.NewDetector(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.ValidateSeries(s)
		d.DetectInSeries(s)
	}
}

// BenchmarkCSVWrite measures the atomic series file write
func BenchmarkCSVWrite(b *testing.B) {
	s := normalized(benchCandles)
	w := storage.NewCSVWriter(b.TempDir(), time.UTC, nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := w.WriteSeries(s); err != nil {
			b.Fatalf("write failed: %v", err)
		}
	}
}

// BenchmarkMirrors measures a full-series store into each database mirror
func BenchmarkMirrors(b *testing.B) {
	s := normalized(benchCandles)
	ctx := context.Background()

	for _, kind := range []string{storage.MirrorDuckDB, storage.MirrorSQLite} {
		b.Run(kind, func(b *testing.B) {
			mirror, err := storage.NewMirror(kind, filepath.Join(b.TempDir(), "bench."+kind), nil)
			if err != nil {
				b.Fatalf("open %s: %v", kind, err)
			}
			defer mirror.Close()
			if err := mirror.Initialize(ctx); err != nil {
				b.Fatalf("initialize %s: %v", kind, err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := mirror.StoreSeries(ctx, fmt.Sprintf("bench-%d", i), s, nil); err != nil {
					b.Fatalf("store failed: %v", err)
				}
			}
			b.ReportMetric(float64(benchCandles*b.N)/b.Elapsed().Seconds(), "rows/sec")
		})
	}
}

// BenchmarkIndicatorCompute measures the full indicator set
func BenchmarkIndicatorCompute(b *testing.B) {
	s := normalized(benchCandles)
	bars := make([]indicators.Bar, len(s.Rows))
	for i, row := range s.Rows {
		bars[i] = indicators.Bar{Time: row.Time, Open: row.Open, High: row.High, Low: row.Low, Close: row.Close, Volume: row.Volume}
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		indicators.Compute(bars)
	}
}
