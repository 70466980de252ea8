package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/johnayoung/go-delta-candles/internal/config"
)

func TestExitCode(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ExitSuccess, exitCode(ctx, nil))
	assert.Equal(t, ExitConnectionErr, exitCode(ctx, cli.Exit("no data", ExitConnectionErr)))
	assert.Equal(t, ExitUsageError, exitCode(ctx, errors.New("flag provided but not defined: -x")))
	assert.Equal(t, ExitInterrupt, exitCode(ctx, context.Canceled))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, ExitInterrupt, exitCode(cancelled, cli.Exit("no data", ExitConnectionErr)))
}

func TestResolutionsCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.RunContext(context.Background(), []string{AppName, "resolutions"}))

	text := out.String()
	assert.Contains(t, text, "RESOLUTION")
	assert.Contains(t, text, "30h0m0s", "1m windows hold 1800 candles")
	assert.Contains(t, text, "30d")
	assert.Contains(t, text, "365d")
}

func TestFlagOverrides(t *testing.T) {
	var got *config.AppConfig

	app := &cli.App{
		Name: AppName,
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: append(fetchFlags(), indicatorFlags("indicator-output")...),
			Action: func(c *cli.Context) error {
				got = config.DefaultConfig()
				got.Fetch.Lookback = "5d"
				applyFetchFlags(c, got)
				indicatorFlagsApplier("indicator-output")(c, got)
				return nil
			},
		}},
	}

	err := app.Run([]string{AppName, "run",
		"--symbols", "BTCUSD, ETHUSD",
		"--resolution", "1h",
		"--days", "3",
		"--rps", "2",
		"--output", "out",
		"--mirror", "sqlite",
		"--mirror-path", "out/candles.sqlite",
		"--input", "in",
		"--indicator-output", "ind",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, got.Fetch.Symbols)
	assert.Equal(t, "1h", got.Fetch.Resolution)
	assert.Equal(t, 3, got.Fetch.DaysToFetch)
	assert.Empty(t, got.Fetch.Lookback, "--days replaces a configured lookback")
	assert.Equal(t, 500*time.Millisecond, got.Fetch.RequestInterval())
	assert.Equal(t, "out", got.Storage.OutputDir)
	assert.Equal(t, "sqlite", got.Storage.Mirror)
	assert.Equal(t, "out/candles.sqlite", got.Storage.MirrorPath)
	assert.Equal(t, "in", got.Indicators.InputDir)
	assert.Equal(t, "ind", got.Indicators.OutputDir)

	t.Run("lookback flag wins", func(t *testing.T) {
		require.NoError(t, app.Run([]string{AppName, "run", "--lookback", "36h"}))
		d, err := got.Fetch.RangeDuration()
		require.NoError(t, err)
		assert.Equal(t, 36*time.Hour, d)
		assert.Equal(t, []string{"ETHUSD"}, got.Fetch.Symbols, "unset flags keep the configured value")
	})
}

func TestFormatWindow(t *testing.T) {
	assert.Equal(t, "5d", formatWindow(5*24*time.Hour))
	assert.Equal(t, "450h0m0s", formatWindow(1620000*time.Second))
}
