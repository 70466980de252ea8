// Delta Exchange candle fetcher CLI
// This application downloads historical OHLCV candles from the Delta Exchange
// public API into per-symbol CSV files and derives technical indicator tables
// from those files.
//
// Usage:
//
//	candles fetch --symbols ETHUSD,BTCUSD --resolution 1h --lookback 30d
//	candles indicators --input data --output data
//	candles run --symbols ETHUSD --resolution 5m --days 3
//	candles resolutions
//
// For detailed help on any command, use: candles <command> --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// CLI version information
const (
	Version = "1.0.0"
	AppName = "candles"
)

// Exit codes following standard conventions
const (
	ExitSuccess       = 0
	ExitUsageError    = 1
	ExitConfigError   = 2
	ExitConnectionErr = 3
	ExitDataError     = 4
	ExitInterrupt     = 130
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newApp().RunContext(ctx, os.Args)
	code := exitCode(ctx, err)
	if err != nil && code != ExitInterrupt {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if code == ExitInterrupt {
		fmt.Fprintln(os.Stderr, "Interrupted, files written so far are complete")
	}
	cancel()
	os.Exit(code)
}

// exitCode maps the outcome of a command to the process exit status.
func exitCode(ctx context.Context, err error) int {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}
	if err == nil {
		return ExitSuccess
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitUsageError
}

func newApp() *cli.App {
	return &cli.App{
		Name:    AppName,
		Usage:   "fetch Delta Exchange candles and compute technical indicators",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file (JSON or YAML)", EnvVars: []string{"CONFIG_PATH"}},
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file loaded before reading the environment"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "download candles for every configured symbol",
				Flags:  fetchFlags(),
				Action: fetchAction,
			},
			{
				Name:   "indicators",
				Usage:  "compute indicator tables from fetched series files",
				Flags:  indicatorFlags("output"),
				Action: indicatorsAction,
			},
			{
				Name:   "run",
				Usage:  "fetch, then compute indicators over the output directory",
				Flags:  append(fetchFlags(), indicatorFlags("indicator-output")...),
				Action: runAction,
			},
			{
				Name:   "resolutions",
				Usage:  "list supported resolutions and their request window",
				Action: resolutionsAction,
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration",
				Flags:  append(fetchFlags(), indicatorFlags("indicator-output")...),
				Action: configAction,
			},
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "symbols", Aliases: []string{"s"}, Usage: "comma separated symbols, e.g. ETHUSD,BTCUSD"},
		&cli.StringFlag{Name: "resolution", Aliases: []string{"r"}, Usage: "candle resolution (see 'candles resolutions')"},
		&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "days of history to fetch"},
		&cli.StringFlag{Name: "lookback", Usage: "history length as a duration, e.g. 36h or 10d; overrides --days"},
		&cli.Float64Flag{Name: "rps", Usage: "maximum requests per second"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "directory for series CSV files"},
		&cli.StringFlag{Name: "mirror", Usage: "also store candles in none, duckdb or sqlite"},
		&cli.StringFlag{Name: "mirror-path", Usage: "database file for --mirror"},
	}
}

// indicatorFlags names the output flag separately so that run can carry both
// the series and the indicator output directory.
func indicatorFlags(outputFlag string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "directory scanned for series CSV files"},
		&cli.StringFlag{Name: outputFlag, Usage: "root directory for indicator tables"},
	}
}
