package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func TestCandle_UnmarshalJSON(t *testing.T) {
	t.Run("numbers and numeric strings", func(t *testing.T) {
		var c Candle
		err := json.Unmarshal([]byte(`{"time":1704110400,"open":100.5,"high":"101","low":99,"close":"100.75","volume":1500}`), &c)
		require.NoError(t, err)

		assert.Equal(t, int64(1704110400), c.Time)
		assert.Equal(t, testTime, c.Timestamp())
		v, ok := c.Open.Get()
		assert.True(t, ok)
		assert.Equal(t, 100.5, v)
		v, ok = c.High.Get()
		assert.True(t, ok)
		assert.Equal(t, 101.0, v)
	})

	t.Run("unparseable values become absent", func(t *testing.T) {
		var c Candle
		err := json.Unmarshal([]byte(`{"time":1704110400,"open":"abc","high":null,"low":99,"close":100,"volume":""}`), &c)
		require.NoError(t, err)

		assert.False(t, c.Open.Valid())
		assert.False(t, c.High.Valid())
		assert.False(t, c.Volume.Valid())
		assert.True(t, c.Low.Valid())
	})
}

func TestCandle_GetPriceChangePercent(t *testing.T) {
	tests := []struct {
		name     string
		open     Value
		close    Value
		expected string
		ok       bool
	}{
		{name: "five percent gain", open: Some(100), close: Some(105), expected: "5.0000", ok: true},
		{name: "loss rounded to four places", open: Some(3), close: Some(2), expected: "-33.3333", ok: true},
		{name: "zero open has no value", open: Some(0), close: Some(105), ok: false},
		{name: "missing close has no value", open: Some(100), close: None(), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candle{Time: testTime.Unix(), Open: tt.open, Close: tt.close}
			pct, ok := c.GetPriceChangePercent()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, pct.StringFixed(4))
			}
		})
	}
}

func TestCandle_GetPriceChange(t *testing.T) {
	c := Candle{Open: Some(0.1), Close: Some(0.3)}
	change, ok := c.GetPriceChange()
	require.True(t, ok)
	assert.Equal(t, "0.2", change.String())
}

func TestFetchWindow_Validate(t *testing.T) {
	assert.NoError(t, FetchWindow{Start: 0, End: 400}.Validate())

	err := FetchWindow{Start: 400, End: 400}.Validate()
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "end", vErr.Field)
}

func TestValue(t *testing.T) {
	t.Run("comparisons against an absent operand are not ok", func(t *testing.T) {
		_, ok := Some(1).GreaterThan(None())
		assert.False(t, ok)
		_, ok = None().LessThan(Some(1))
		assert.False(t, ok)

		gt, ok := Some(2).GreaterThan(Some(1))
		assert.True(t, ok)
		assert.True(t, gt)
	})

	t.Run("NaN is absent", func(t *testing.T) {
		assert.False(t, ParseValue("NaN").Valid())
		assert.False(t, ParseValue("").Valid())
		assert.True(t, ParseValue(" 1.5 ").Valid())
	})

	t.Run("format", func(t *testing.T) {
		assert.Equal(t, "", None().Format(8))
		assert.Equal(t, "1.50000000", Some(1.5).Format(8))
		assert.Equal(t, "1.5", Some(1.5).Format(-1))
	})

	t.Run("sub propagates absence", func(t *testing.T) {
		assert.False(t, Some(3).Sub(None()).Valid())
		v, _ := Some(3).Sub(Some(1)).Get()
		assert.Equal(t, 2.0, v)
	})
}

func TestResolution(t *testing.T) {
	tests := []struct {
		res     Resolution
		minutes int
		label   string
		tier    Tier
	}{
		{Resolution1m, 1, "1 minute", TierMinute},
		{Resolution3m, 3, "3 minutes", TierMinute},
		{Resolution5m, 5, "5 minutes", TierMinute},
		{Resolution15m, 15, "15 minutes", TierHour},
		{Resolution30m, 30, "30 minutes", TierHour},
		{Resolution1h, 60, "1 hour", TierHour},
		{Resolution2h, 120, "2 hours", TierDay},
		{Resolution4h, 240, "4 hours", TierDay},
		{Resolution6h, 360, "6 hours", TierDay},
		{Resolution1d, 1440, "1 day", TierDay},
		{Resolution1w, 10080, "1 week", TierDay},
	}

	require.Len(t, AllResolutions(), len(tests))
	for i, tt := range tests {
		t.Run(string(tt.res), func(t *testing.T) {
			assert.Equal(t, tt.res, AllResolutions()[i])
			assert.Equal(t, tt.minutes, tt.res.Minutes())
			assert.Equal(t, tt.label, tt.res.Label())
			assert.Equal(t, tt.tier, tt.res.Tier())

			parsed, err := ParseResolution(string(tt.res))
			require.NoError(t, err)
			assert.Equal(t, tt.res, parsed)
		})
	}

	_, err := ParseResolution("2m")
	assert.Error(t, err)
}

func TestNewGap(t *testing.T) {
	prev := testTime
	next := testTime.Add(5 * time.Minute)

	gap, err := NewGap("ETHUSD", Resolution1m, prev, next)
	require.NoError(t, err)
	assert.Equal(t, 4, gap.Missing)
	assert.Equal(t, testTime.Add(time.Minute), gap.StartTime)
	assert.Equal(t, 4*time.Minute, gap.Duration())

	_, err = NewGap("ETHUSD", Resolution1m, prev, prev.Add(time.Minute))
	assert.Error(t, err)
}

func TestValidateOHLCVLogic(t *testing.T) {
	t.Run("clean candle", func(t *testing.T) {
		anomalies := ValidateOHLCVLogic(testTime, Some(100), Some(105), Some(99), Some(104), Some(10))
		assert.Empty(t, anomalies)
	})

	t.Run("high below low", func(t *testing.T) {
		anomalies := ValidateOHLCVLogic(testTime, Some(100), Some(98), Some(99), Some(99), Some(10))
		require.NotEmpty(t, anomalies)
		assert.Equal(t, AnomalyTypeLogicError, anomalies[0].Type)
		assert.Equal(t, SeverityError, anomalies[0].Severity)
	})

	t.Run("missing and negative", func(t *testing.T) {
		anomalies := ValidateOHLCVLogic(testTime, None(), Some(105), Some(99), Some(104), Some(-1))
		require.Len(t, anomalies, 2)
		assert.Equal(t, AnomalyTypeMissingValue, anomalies[0].Type)
		assert.Equal(t, AnomalyTypeNegative, anomalies[1].Type)
	})
}
