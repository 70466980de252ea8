package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/johnayoung/go-delta-candles/internal/collector"
	"github.com/johnayoung/go-delta-candles/internal/config"
	apperrors "github.com/johnayoung/go-delta-candles/internal/errors"
	"github.com/johnayoung/go-delta-candles/internal/exchange"
	"github.com/johnayoung/go-delta-candles/internal/indicators"
	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/storage"
)

// app carries what every command needs once configuration is resolved
type app struct {
	cfg  *config.AppConfig
	logs *logger.LoggerManager
}

// setup loads configuration, applies command line overrides, re-validates and
// starts logging.
func setup(c *cli.Context, overrides ...func(*cli.Context, *config.AppConfig)) (*app, error) {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cm := config.NewConfigManager(c.String("config"), c.String("env-file"), bootstrap)
	cfg, err := cm.LoadConfig(c.Context)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}

	applyLoggingFlags(c, cfg)
	for _, apply := range overrides {
		apply(c, cfg)
	}
	if err := cm.Validate(cfg); err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid options: %v", err), ExitConfigError)
	}

	logs, err := logger.NewLoggerManager(cfg.Logging)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}

	return &app{cfg: cfg, logs: logs}, nil
}

func (a *app) component(name string) *slog.Logger {
	return a.logs.GetComponentLogger(name).Logger
}

func (a *app) close() {
	_ = a.logs.Close()
}

func applyLoggingFlags(c *cli.Context, cfg *config.AppConfig) {
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
}

func applyFetchFlags(c *cli.Context, cfg *config.AppConfig) {
	if c.IsSet("symbols") {
		cfg.Fetch.Symbols = config.SplitList(c.String("symbols"))
	}
	if c.IsSet("resolution") {
		cfg.Fetch.Resolution = c.String("resolution")
	}
	if c.IsSet("days") {
		cfg.Fetch.DaysToFetch = c.Int("days")
		cfg.Fetch.Lookback = ""
	}
	if c.IsSet("lookback") {
		cfg.Fetch.Lookback = c.String("lookback")
	}
	if c.IsSet("rps") {
		cfg.Fetch.MaxRequestsPerSecond = c.Float64("rps")
	}
	if c.IsSet("output") {
		cfg.Storage.OutputDir = c.String("output")
	}
	if c.IsSet("mirror") {
		cfg.Storage.Mirror = c.String("mirror")
	}
	if c.IsSet("mirror-path") {
		cfg.Storage.MirrorPath = c.String("mirror-path")
	}
}

func indicatorFlagsApplier(outputFlag string) func(*cli.Context, *config.AppConfig) {
	return func(c *cli.Context, cfg *config.AppConfig) {
		if c.IsSet("input") {
			cfg.Indicators.InputDir = c.String("input")
		}
		if c.IsSet(outputFlag) {
			cfg.Indicators.OutputDir = c.String(outputFlag)
		}
	}
}

func fetchAction(c *cli.Context) error {
	a, err := setup(c, applyFetchFlags)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.fetch(c.Context)
	return err
}

func indicatorsAction(c *cli.Context) error {
	a, err := setup(c, indicatorFlagsApplier("output"))
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.indicators(c.Context, a.cfg.Indicators.InputDir)
	return err
}

func runAction(c *cli.Context) error {
	a, err := setup(c, applyFetchFlags, indicatorFlagsApplier("indicator-output"))
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.fetch(c.Context); err != nil {
		return err
	}

	input := a.cfg.Storage.OutputDir
	if c.IsSet("input") {
		input = a.cfg.Indicators.InputDir
	}
	_, err = a.indicators(c.Context, input)
	return err
}

func configAction(c *cli.Context) error {
	a, err := setup(c, applyFetchFlags, indicatorFlagsApplier("indicator-output"))
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println(a.cfg.String())
	return nil
}

func resolutionsAction(c *cli.Context) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOLUTION\tLABEL\tTIER\tMAX WINDOW")
	for _, r := range models.AllResolutions() {
		window := time.Duration(collector.BatchDuration(r)) * time.Second
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r, r.Label(), r.Tier(), formatWindow(window))
	}
	return w.Flush()
}

func formatWindow(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}

// fetch runs the multi-symbol download. It fails with a connection exit code
// when no symbol produced any data.
func (a *app) fetch(ctx context.Context) (*collector.RunReport, error) {
	cfg := a.cfg

	resolution, err := models.ParseResolution(cfg.Fetch.Resolution)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}
	lookback, err := cfg.Fetch.RangeDuration()
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}
	pause, _ := config.ParseDuration(cfg.Fetch.SymbolPause)
	initialDelay, _ := config.ParseDuration(cfg.Exchange.RetryPolicy.InitialDelay)
	maxDelay, _ := config.ParseDuration(cfg.Exchange.RetryPolicy.MaxDelay)
	loc, err := cfg.Fetch.Location()
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}

	adapter := exchange.NewDeltaAdapter(exchange.DeltaConfig{
		BaseURL:    cfg.Exchange.BaseURL,
		APIVersion: cfg.Exchange.APIVersion,
		UserAgent:  cfg.Exchange.UserAgent,
		Timeout:    cfg.Exchange.TimeoutDuration(),
		RetryPolicy: apperrors.RetryPolicy{
			MaxAttempts:  cfg.Exchange.RetryPolicy.MaxAttempts,
			InitialDelay: initialDelay,
			MaxDelay:     maxDelay,
		},
	}, a.component("exchange"))

	pacer, err := collector.NewRatePacer(cfg.Fetch.MaxRequestsPerSecond)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}

	storageLog := a.component("storage")
	writer := storage.NewCSVWriter(cfg.Storage.OutputDir, loc, storageLog)

	mirror, err := storage.NewMirror(cfg.Storage.Mirror, cfg.Storage.MirrorPath, storageLog)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to open mirror: %v", err), ExitConfigError)
	}
	if mirror != nil {
		defer mirror.Close()
		if err := mirror.Initialize(ctx); err != nil {
			return nil, cli.Exit(fmt.Sprintf("failed to initialize mirror: %v", err), ExitConfigError)
		}
	}

	orchestrator, err := collector.NewOrchestrator(collector.Config{
		Resolution:  resolution,
		Lookback:    lookback,
		SymbolPause: pause,
		Location:    loc,
	}, adapter, pacer, writer, mirror, a.component("collector"))
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitConfigError)
	}

	ctx = logger.WithOperation(ctx, "fetch")
	a.logs.WithContext(ctx).Info("starting fetch",
		"symbols", cfg.Fetch.Symbols,
		"resolution", resolution,
		"lookback", lookback,
		"rps", cfg.Fetch.MaxRequestsPerSecond,
		"output_dir", cfg.Storage.OutputDir,
	)

	report, err := orchestrator.Run(ctx, cfg.Fetch.Symbols)
	printRunReport(report, loc)
	if err != nil {
		return report, err
	}
	if report.Succeeded() == 0 {
		return report, cli.Exit("no symbol produced any data; check connectivity and symbol names", ExitConnectionErr)
	}
	return report, nil
}

// indicators runs the capability check and then the batch over inputDir.
func (a *app) indicators(ctx context.Context, inputDir string) (*indicators.BatchResult, error) {
	outputDir := a.cfg.Indicators.OutputDir
	if err := indicators.CheckCapabilities(outputDir); err != nil {
		return nil, cli.Exit(fmt.Sprintf("indicator engine unavailable: %v", err), ExitDataError)
	}

	ctx = logger.WithOperation(ctx, "indicators")
	engine := indicators.NewEngine(outputDir, a.component("indicators"))
	result, err := engine.ProcessDir(ctx, inputDir)
	printBatchResult(result, outputDir)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, cli.Exit(err.Error(), ExitDataError)
	}
	if result.Processed() == 0 && len(result.Failures) > 0 {
		return result, cli.Exit(fmt.Sprintf("all %d input files failed", len(result.Failures)), ExitDataError)
	}
	return result, nil
}

func printRunReport(report *collector.RunReport, loc *time.Location) {
	if report == nil {
		return
	}
	fmt.Printf("\nFetch %s (%s) %s → %s\n", report.RunID, report.Resolution,
		report.Start.In(loc).Format(storage.DateTimeLayout),
		report.End.In(loc).Format(storage.DateTimeLayout))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  SYMBOL\tROWS\tGAPS\tMISSING\tANOMALIES\tWINDOWS OK\tFILE")
	for _, r := range report.Results {
		if !r.OK() {
			fmt.Fprintf(w, "  %s\t-\t-\t-\t-\t%d/%d\t%v\n", r.Symbol,
				r.Stats.WindowsFetched, r.Stats.WindowsPlanned, r.Err)
			continue
		}
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%d\t%d/%d\t%s\n", r.Symbol, r.Rows, len(r.Gaps),
			r.MissingCandles, r.Anomalies, r.Stats.WindowsFetched, r.Stats.WindowsPlanned, r.File)
	}
	_ = w.Flush()

	fmt.Printf("✅ %d/%d symbols, %d rows in %s\n", report.Succeeded(), len(report.Results),
		report.TotalRows(), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func printBatchResult(result *indicators.BatchResult, outputDir string) {
	if result == nil {
		return
	}
	for _, s := range result.Summaries {
		fmt.Printf("\n📈 %s (%s, %d records)\n", s.Symbol, s.File, s.TotalRecords)
		fmt.Printf("  Price: %s\n", s.Close)
		fmt.Printf("  RSI-14: %s (%s)\n", s.RSI, s.RSISignal)
		fmt.Printf("  SMA-50: %s\n", s.SMA)
		fmt.Printf("  EMA Cross: %s (EMA9: %s, EMA21: %s)\n", s.EMACross, s.EMAFast, s.EMASlow)
		fmt.Printf("  ATR-14: %s\n", s.ATR)
		fmt.Printf("  MACD: %s / %s (%s)\n", s.MACD, s.MACDSignal, s.MACDCross)
		fmt.Printf("  Bollinger: %s (upper %s, lower %s)\n", s.BBPosition, s.BBUpper, s.BBLower)
		fmt.Printf("  VWAP: %s\n", s.VWAP)
		fmt.Printf("  ADX: %s (%s)\n", s.ADX, s.ADXStrength)
	}
	for _, f := range result.Failures {
		fmt.Printf("\n❌ %s: %v\n", filepath.Base(f.File), f.Err)
	}
	fmt.Printf("\n✅ Indicators: %d processed, %d failed", result.Processed(), len(result.Failures))
	if result.SummaryFile != "" {
		fmt.Printf(", summary %s", result.SummaryFile)
	}
	fmt.Println()
	if result.Processed() > 0 {
		fmt.Println("📁 Output directories:")
		for _, dir := range indicators.OutputDirs() {
			fmt.Printf("  %s\n", filepath.Join(outputDir, dir))
		}
	}
}
