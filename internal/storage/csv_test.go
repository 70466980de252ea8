package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

func createTestSeries(t *testing.T, symbol string, count int) *models.Series {
	t.Helper()
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := &models.Series{
		Symbol:         symbol,
		Resolution:     models.Resolution1m,
		RequestedStart: start,
		RequestedEnd:   start.Add(10 * 24 * time.Hour),
	}
	for i := 0; i < count; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		open := 2300.0 + float64(i)
		series.Rows = append(series.Rows, models.SeriesRow{
			Symbol:         symbol,
			Time:           ts,
			DisplayTime:    ts.In(ist),
			Epoch:          ts.Unix(),
			Open:           models.Some(open),
			High:           models.Some(open + 2),
			Low:            models.Some(open - 1),
			Close:          models.Some(open + 1),
			Volume:         models.Some(10.5),
			PriceChange:    decimal.NewNullDecimal(decimal.NewFromInt(1)),
			PriceChangePct: decimal.NewNullDecimal(decimal.NewFromFloat(0.0435)),
		})
	}
	return series
}

func TestCSVWriter_WriteSeries(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	t.Run("writes header and formatted rows", func(t *testing.T) {
		dir := t.TempDir()
		writer := NewCSVWriter(dir, ist, nil)
		series := createTestSeries(t, "ETHUSD", 2)
		series.Rows[1].Volume = models.None()
		series.Rows[1].PriceChangePct = decimal.NullDecimal{}

		path, err := writer.WriteSeries(series)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "ETHUSD_1m_20240101_20240111.csv"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 3)

		assert.Equal(t, "symbol,datetime_ist,datetime,time,open,high,low,close,volume,price_change,price_change_pct", lines[0])
		assert.Equal(t,
			"ETHUSD,2024-01-01 05:30:00,2024-01-01 00:00:00,1704067200,2300.00000000,2302.00000000,2299.00000000,2301.00000000,10.50000000,1.00000000,0.0435",
			lines[1])
		assert.True(t, strings.HasSuffix(lines[2], ",2302.00000000,,1.00000000,"), lines[2])
	})

	t.Run("leaves no temporary files", func(t *testing.T) {
		dir := t.TempDir()
		_, err := NewCSVWriter(dir, ist, nil).WriteSeries(createTestSeries(t, "BTCUSD", 5))
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "BTCUSD_1m_20240101_20240111.csv", entries[0].Name())
	})

	t.Run("empty series still writes a header", func(t *testing.T) {
		dir := t.TempDir()
		path, err := NewCSVWriter(dir, nil, nil).WriteSeries(createTestSeries(t, "SOLUSD", 0))
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, strings.Join(SeriesHeader, ",")+"\n", string(data))
	})

	t.Run("series without symbol is rejected", func(t *testing.T) {
		_, err := NewCSVWriter(t.TempDir(), nil, nil).WriteSeries(&models.Series{})
		assert.Error(t, err)
	})
}

func TestWriteFileAtomic_FailureKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return assert.AnError
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
