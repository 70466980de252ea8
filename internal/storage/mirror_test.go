package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

func TestMirrors(t *testing.T) {
	ctx := context.Background()

	kinds := []struct {
		kind string
		path func(t *testing.T) string
	}{
		{MirrorDuckDB, func(t *testing.T) string { return filepath.Join(t.TempDir(), "candles.duckdb") }},
		{MirrorSQLite, func(t *testing.T) string { return filepath.Join(t.TempDir(), "candles.sqlite") }},
	}

	for _, k := range kinds {
		t.Run(k.kind, func(t *testing.T) {
			mirror, err := NewMirror(k.kind, k.path(t), nil)
			require.NoError(t, err)
			require.NotNil(t, mirror)
			defer mirror.Close()

			require.NoError(t, mirror.Initialize(ctx))
			// Migrations are idempotent
			require.NoError(t, mirror.Initialize(ctx))

			series := createTestSeries(t, "ETHUSD", 25)
			series.Rows[3].Volume = models.None()

			gap, err := models.NewGap("ETHUSD", models.Resolution1m, series.Rows[0].Time, series.Rows[0].Time.Add(5*time.Minute))
			require.NoError(t, err)

			require.NoError(t, mirror.StoreSeries(ctx, "run-1", series, []models.Gap{*gap}))
			count, err := mirror.CountRows(ctx, "ETHUSD", models.Resolution1m)
			require.NoError(t, err)
			assert.Equal(t, 25, count)

			// A rerun over the same range replaces rather than duplicates
			require.NoError(t, mirror.StoreSeries(ctx, "run-2", series, nil))
			count, err = mirror.CountRows(ctx, "ETHUSD", models.Resolution1m)
			require.NoError(t, err)
			assert.Equal(t, 25, count)

			count, err = mirror.CountRows(ctx, "BTCUSD", models.Resolution1m)
			require.NoError(t, err)
			assert.Zero(t, count)

			assert.NoError(t, mirror.StoreSeries(ctx, "run-3", &models.Series{Symbol: "ETHUSD"}, nil))
		})
	}
}

func TestNewMirror(t *testing.T) {
	mirror, err := NewMirror("none", "", nil)
	assert.NoError(t, err)
	assert.Nil(t, mirror)

	mirror, err = NewMirror("", "", nil)
	assert.NoError(t, err)
	assert.Nil(t, mirror)

	_, err = NewMirror("postgres", "x", nil)
	assert.Error(t, err)

	_, err = NewMirror(MirrorSQLite, "", nil)
	assert.Error(t, err)
}
