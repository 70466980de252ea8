package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "delta-candles", config.AppName)
	assert.Equal(t, "https://api.india.delta.exchange", config.Exchange.BaseURL)
	assert.Equal(t, "v2", config.Exchange.APIVersion)
	assert.Equal(t, 30*time.Second, config.Exchange.TimeoutDuration())
	assert.Equal(t, []string{"ETHUSD"}, config.Fetch.Symbols)
	assert.Equal(t, "1m", config.Fetch.Resolution)
	assert.Equal(t, 10, config.Fetch.DaysToFetch)
	assert.Equal(t, 200*time.Millisecond, config.Fetch.RequestInterval())
	assert.Equal(t, "Asia/Kolkata", config.Fetch.DisplayTimezone)
	assert.Equal(t, "data", config.Storage.OutputDir)
	assert.Equal(t, "info", config.Logging.Level)

	rng, err := config.Fetch.RangeDuration()
	require.NoError(t, err)
	assert.Equal(t, 240*time.Hour, rng)
}

func TestConfigValidation(t *testing.T) {
	cm := NewConfigManager("", "", slog.Default())

	t.Run("valid config passes validation", func(t *testing.T) {
		assert.NoError(t, cm.validateConfig(DefaultConfig()))
	})

	tests := []struct {
		name     string
		mutate   func(*AppConfig)
		expected string
	}{
		{"missing symbols fails", func(c *AppConfig) { c.Fetch.Symbols = nil }, "fetch.symbols must contain at least one symbol"},
		{"unknown resolution fails", func(c *AppConfig) { c.Fetch.Resolution = "2m" }, "fetch.resolution must be one of"},
		{"zero days fails", func(c *AppConfig) { c.Fetch.DaysToFetch = 0 }, "fetch.days_to_fetch must be greater than 0"},
		{"bad lookback fails", func(c *AppConfig) { c.Fetch.Lookback = "ten days" }, "fetch.lookback must be a positive duration"},
		{"zero rate fails", func(c *AppConfig) { c.Fetch.MaxRequestsPerSecond = 0 }, "fetch.max_requests_per_second must be greater than 0"},
		{"unknown timezone fails", func(c *AppConfig) { c.Fetch.DisplayTimezone = "Mars/Olympus" }, "fetch.display_timezone is not a known timezone"},
		{"mirror without path fails", func(c *AppConfig) { c.Storage.Mirror = "duckdb" }, "storage.mirror_path is required for duckdb mirror"},
		{"unknown mirror fails", func(c *AppConfig) { c.Storage.Mirror = "postgres" }, "storage.mirror must be one of"},
		{"invalid log level fails", func(c *AppConfig) { c.Logging.Level = "verbose" }, "logging.level must be one of"},
		{"bad timeout fails", func(c *AppConfig) { c.Exchange.Timeout = "soon" }, "exchange.timeout is not a valid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := cm.validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}

	t.Run("lookback replaces days", func(t *testing.T) {
		config := DefaultConfig()
		config.Fetch.DaysToFetch = 0
		config.Fetch.Lookback = "2d12h"
		require.NoError(t, cm.validateConfig(config))

		d, err := config.Fetch.RangeDuration()
		require.NoError(t, err)
		assert.Equal(t, 60*time.Hour, d)
	})
}

func TestLoadConfig_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	fileConfig := map[string]any{
		"fetch": map[string]any{
			"symbols":    []string{"BTCUSD", "SOLUSD"},
			"resolution": "1h",
		},
		"storage": map[string]any{"output_dir": filepath.Join(dir, "out")},
	}
	data, err := json.Marshal(fileConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cm := NewConfigManager(path, filepath.Join(dir, "missing.env"), nil)
	_, err = cm.LoadConfig(context.Background())
	require.Error(t, err, "an explicit env file that does not exist is an error")

	cm = NewConfigManager(path, "", nil)
	config, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSD", "SOLUSD"}, config.Fetch.Symbols)
	assert.Equal(t, "1h", config.Fetch.Resolution)
	assert.Equal(t, 10, config.Fetch.DaysToFetch, "unset fields keep their defaults")
	assert.Same(t, config, cm.GetConfig())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlConfig := `
fetch:
  symbols: [ETHUSD]
  resolution: 4h
  lookback: 30d
  max_requests_per_second: 2
storage:
  mirror: sqlite
  mirror_path: data/candles.sqlite
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0644))

	config, err := NewConfigManager(path, "", nil).LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "4h", config.Fetch.Resolution)
	assert.Equal(t, 500*time.Millisecond, config.Fetch.RequestInterval())
	assert.Equal(t, "sqlite", config.Storage.Mirror)
	assert.Equal(t, "debug", config.Logging.Level)

	d, err := config.Fetch.RangeDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESOLUTION=15m\nDAYS_TO_FETCH=3\n"), 0644))

	t.Setenv("SYMBOLS", "BTCUSD, ETHUSD ,")
	t.Setenv("MAX_REQUESTS_PER_SECOND", "10")
	t.Setenv("DAYS_TO_FETCH", "7")
	// godotenv sets variables for the rest of the process; register cleanup
	t.Setenv("RESOLUTION", "")
	require.NoError(t, os.Unsetenv("RESOLUTION"))

	config, err := NewConfigManager("", envFile, nil).LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, config.Fetch.Symbols)
	assert.Equal(t, 100*time.Millisecond, config.Fetch.RequestInterval())
	assert.Equal(t, "15m", config.Fetch.Resolution, "value comes from the env file")
	assert.Equal(t, 7, config.Fetch.DaysToFetch, "process environment wins over the env file")

	t.Run("invalid numbers are reported", func(t *testing.T) {
		t.Setenv("DAYS_TO_FETCH", "many")
		_, err := NewConfigManager("", "", nil).LoadConfig(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DAYS_TO_FETCH")
	})
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("1w")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseDuration("")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDuration("fortnight")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, SplitList(" A,,B , "))
	assert.Nil(t, SplitList(""))
}
