package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

// DateTimeLayout is the timestamp format used in every written table.
const DateTimeLayout = "2006-01-02 15:04:05"

// SeriesHeader is the column order of a series file.
var SeriesHeader = []string{
	"symbol", "datetime_ist", "datetime", "time",
	"open", "high", "low", "close", "volume",
	"price_change", "price_change_pct",
}

// CSVWriter writes series files into a directory.
type CSVWriter struct {
	outputDir string
	location  *time.Location
	logger    *slog.Logger
}

// NewCSVWriter creates a writer. Dates in file names use loc (UTC when nil).
func NewCSVWriter(outputDir string, loc *time.Location, log *slog.Logger) *CSVWriter {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CSVWriter{outputDir: outputDir, location: loc, logger: log}
}

// FileName returns SYMBOL_RES_YYYYMMDD_YYYYMMDD.csv for the series' requested
// range, with dates taken in the writer's timezone.
func (w *CSVWriter) FileName(series *models.Series) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv",
		series.Symbol,
		series.Resolution,
		series.RequestedStart.In(w.location).Format("20060102"),
		series.RequestedEnd.In(w.location).Format("20060102"),
	)
}

// WriteSeries implements SeriesWriter
func (w *CSVWriter) WriteSeries(series *models.Series) (string, error) {
	if series == nil || series.Symbol == "" {
		return "", NewStorageError("write", "", "", fmt.Errorf("series has no symbol"))
	}
	path := filepath.Join(w.outputDir, w.FileName(series))

	err := WriteFileAtomic(path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(SeriesHeader); err != nil {
			return err
		}
		for _, row := range series.Rows {
			if err := cw.Write(seriesRecord(row)); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row.Epoch, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return "", err
	}

	w.logger.Info("series written",
		"symbol", series.Symbol,
		"resolution", series.Resolution,
		"rows", series.Len(),
		"path", path,
	)
	return path, nil
}

func seriesRecord(row models.SeriesRow) []string {
	return []string{
		row.Symbol,
		row.DisplayTime.Format(DateTimeLayout),
		row.Time.Format(DateTimeLayout),
		strconv.FormatInt(row.Epoch, 10),
		row.Open.Format(8),
		row.High.Format(8),
		row.Low.Format(8),
		row.Close.Format(8),
		row.Volume.Format(8),
		formatNullDecimal(row.PriceChange, 8),
		formatNullDecimal(row.PriceChangePct, 4),
	}
}

func formatNullDecimal(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(places)
}
