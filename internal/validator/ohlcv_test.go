package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

func createRow(ts time.Time, o, h, l, c, v float64) models.SeriesRow {
	return models.SeriesRow{
		Symbol: "BTCUSD",
		Time:   ts,
		Epoch:  ts.Unix(),
		Open:   models.Some(o),
		High:   models.Some(h),
		Low:    models.Some(l),
		Close:  models.Some(c),
		Volume: models.Some(v),
	}
}

func TestOHLCVValidator_ValidateSeries(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	v := NewOHLCVValidator(nil)

	t.Run("clean series", func(t *testing.T) {
		series := &models.Series{Symbol: "BTCUSD", Rows: []models.SeriesRow{
			createRow(base, 100, 110, 95, 105, 10),
			createRow(base.Add(time.Minute), 105, 108, 101, 102, 4),
		}}

		report := v.ValidateSeries(series)
		assert.Equal(t, 2, report.RowsChecked)
		assert.Zero(t, report.RowsFlagged)
		assert.Empty(t, report.Anomalies)
		assert.Equal(t, 1.0, report.QualityScore())
	})

	t.Run("flags logic errors and duplicates without dropping rows", func(t *testing.T) {
		bad := createRow(base.Add(time.Minute), 105, 100, 101, 102, 4)
		dup := createRow(base.Add(time.Minute), 101, 103, 100, 102, 1)
		series := &models.Series{Symbol: "BTCUSD", Rows: []models.SeriesRow{
			createRow(base, 100, 110, 95, 105, 10),
			bad,
			dup,
		}}

		report := v.ValidateSeries(series)
		assert.Len(t, series.Rows, 3)
		assert.Equal(t, 2, report.RowsFlagged)
		assert.InDelta(t, 1.0/3.0, report.QualityScore(), 1e-9)

		var types []models.AnomalyType
		for _, a := range report.Anomalies {
			types = append(types, a.Type)
		}
		assert.Contains(t, types, models.AnomalyTypeLogicError)
		assert.Contains(t, types, models.AnomalyTypeDuplicate)
		assert.Positive(t, report.ErrorCount)
	})

	t.Run("missing values are informational", func(t *testing.T) {
		row := createRow(base, 100, 110, 95, 105, 10)
		row.Volume = models.None()

		report := v.ValidateSeries(&models.Series{Rows: []models.SeriesRow{row}})
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, models.SeverityInfo, report.Anomalies[0].Severity)
		assert.Zero(t, report.ErrorCount)
		assert.Zero(t, report.WarningCount)
	})

	t.Run("nil series", func(t *testing.T) {
		report := v.ValidateSeries(nil)
		assert.Zero(t, report.RowsChecked)
	})
}
