// Package validator checks normalized candle series for OHLC inconsistencies.
//
// Validation is advisory: anomalies are returned and logged, and no row is
// ever removed or altered because of them.
package validator

import (
	"log/slog"
	"time"

	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

// Report holds the outcome of validating one series.
type Report struct {
	Symbol       string           `json:"symbol"`
	RowsChecked  int              `json:"rows_checked"`
	RowsFlagged  int              `json:"rows_flagged"`
	Anomalies    []models.Anomaly `json:"anomalies"`
	ValidatedAt  time.Time        `json:"validated_at"`
	ErrorCount   int              `json:"error_count"`
	WarningCount int              `json:"warning_count"`
}

// QualityScore is the share of rows without any anomaly.
func (r *Report) QualityScore() float64 {
	if r.RowsChecked == 0 {
		return 1
	}
	return float64(r.RowsChecked-r.RowsFlagged) / float64(r.RowsChecked)
}

// OHLCVValidator validates series rows
type OHLCVValidator struct {
	logger *slog.Logger

	// maxLogged caps the per-anomaly log lines for one series
	maxLogged int
}

// NewOHLCVValidator creates a validator
func NewOHLCVValidator(log *slog.Logger) *OHLCVValidator {
	if log == nil {
		log = logger.Discard()
	}
	return &OHLCVValidator{logger: log, maxLogged: 10}
}

// ValidateSeries checks every row for OHLC logic errors, missing and negative
// values, and repeated timestamps.
func (v *OHLCVValidator) ValidateSeries(series *models.Series) *Report {
	report := &Report{ValidatedAt: time.Now().UTC()}
	if series == nil {
		return report
	}
	report.Symbol = series.Symbol
	report.RowsChecked = len(series.Rows)

	var previous int64
	for i, row := range series.Rows {
		anomalies := models.ValidateOHLCVLogic(row.Time, row.Open, row.High, row.Low, row.Close, row.Volume)

		if i > 0 && row.Epoch == previous {
			anomalies = append(anomalies, models.NewAnomaly(models.AnomalyTypeDuplicate, "time", row.Time,
				"timestamp repeats the previous row"))
		}
		previous = row.Epoch

		if len(anomalies) == 0 {
			continue
		}
		report.RowsFlagged++
		for _, anomaly := range anomalies {
			switch anomaly.Severity {
			case models.SeverityError:
				report.ErrorCount++
			case models.SeverityWarning:
				report.WarningCount++
			}
		}
		report.Anomalies = append(report.Anomalies, anomalies...)
	}

	for i, anomaly := range report.Anomalies {
		if i == v.maxLogged {
			v.logger.Warn("further anomalies suppressed",
				"symbol", series.Symbol,
				"suppressed", len(report.Anomalies)-v.maxLogged,
			)
			break
		}
		v.logger.Warn("candle anomaly",
			"symbol", series.Symbol,
			"type", anomaly.Type,
			"field", anomaly.Field,
			"time", anomaly.Time.Format(time.RFC3339),
			"description", anomaly.Description,
		)
	}

	return report
}
