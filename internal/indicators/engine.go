// Package indicators computes technical indicators over persisted candle
// series and writes per-indicator, consolidated and summary tables.
package indicators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-delta-candles/internal/errors"
	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/storage"
)

const (
	component = "indicators"

	// SummaryFileName is written at the output root after a batch.
	SummaryFileName = "indicator_summary.csv"
)

// Summary captures the latest bar of one processed file.
type Summary struct {
	Symbol       string
	File         string
	TotalRecords int

	Close      string
	RSI        string
	SMA        string
	EMAFast    string
	EMASlow    string
	EMACross   string
	ATR        string
	MACD       string
	MACDSignal string
	BBUpper    string
	BBLower    string
	VWAP       string
	ADX        string

	RSISignal   string
	MACDCross   string
	BBPosition  string
	ADXStrength string

	Outputs []OutputFile
}

// Output returns the path written for key ("rsi", "consolidated", ...).
func (s Summary) Output(key string) string {
	for _, o := range s.Outputs {
		if o.Key == key {
			return o.Path
		}
	}
	return ""
}

// FileFailure records an input file that could not be processed.
type FileFailure struct {
	File string
	Err  error
}

// BatchResult is the outcome of ProcessDir.
type BatchResult struct {
	Summaries   []Summary
	Failures    []FileFailure
	SummaryFile string
	Duration    time.Duration
}

// Processed returns the number of files handled successfully.
func (b *BatchResult) Processed() int {
	return len(b.Summaries)
}

// Engine runs the indicator batch.
type Engine struct {
	outputDir string
	logger    *logger.ComponentLogger
}

// NewEngine creates an engine that writes under outputDir.
func NewEngine(outputDir string, log *slog.Logger) *Engine {
	return &Engine{outputDir: outputDir, logger: logger.Wrap(log, component)}
}

// SymbolFromStem returns the symbol encoded in a series file name, the part
// before the first underscore.
func SymbolFromStem(stem string) string {
	symbol, _, _ := strings.Cut(stem, "_")
	return symbol
}

// ProcessFile computes and writes every indicator table for one input file.
func (e *Engine) ProcessFile(ctx context.Context, path string) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	ctx = logger.WithFile(ctx, name)

	table, err := storage.ReadTable(path, RequiredColumns...)
	if err != nil {
		errType := apperrors.ErrorTypeStorage
		if errors.Is(err, storage.ErrMissingColumns) {
			errType = apperrors.ErrorTypeValidation
		}
		return nil, apperrors.New(errType, component, "read_input", err).With("file", name)
	}

	bars, err := BarsFromTable(table)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeParse, component, "parse_input", err).With("file", name)
	}

	frame := Compute(bars)
	outputs, err := writeFrame(e.outputDir, stem, frame)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeStorage, component, "write_output", err).With("file", name)
	}

	summary := summarize(frame, stem, name)
	summary.Outputs = outputs

	e.logger.InfoWithContext(ctx, "processed file",
		"symbol", summary.Symbol,
		"records", summary.TotalRecords,
		"close", summary.Close,
		"rsi", summary.RSI,
		"rsi_signal", summary.RSISignal,
		"ema_cross", summary.EMACross,
		"macd_cross", summary.MACDCross,
		"bb_position", summary.BBPosition,
		"adx_strength", summary.ADXStrength,
	)
	return &summary, nil
}

// ProcessDir processes every *.csv file at the top level of inputDir. A file
// that fails is logged and recorded in the result; it never stops the batch.
// The returned error is non-nil only when the directory cannot be listed, the
// summary cannot be written or ctx is cancelled.
func (e *Engine) ProcessDir(ctx context.Context, inputDir string) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{}

	files, err := inputFiles(inputDir)
	if err != nil {
		return result, apperrors.New(apperrors.ErrorTypeStorage, component, "list_input", err).With("dir", inputDir)
	}
	if len(files) == 0 {
		e.logger.WarnWithContext(ctx, "no csv files found", "dir", inputDir)
		return result, nil
	}

	e.logger.InfoWithContext(ctx, "processing indicator batch", "dir", inputDir, "files", len(files), "output_dir", e.outputDir)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		summary, err := e.ProcessFile(ctx, path)
		if err != nil {
			e.logger.ErrorWithContext(logger.WithFile(ctx, filepath.Base(path)), "failed to process file", err,
				"error_type", apperrors.GetErrorType(err),
			)
			result.Failures = append(result.Failures, FileFailure{File: path, Err: err})
			continue
		}
		result.Summaries = append(result.Summaries, *summary)
	}

	if len(result.Summaries) > 0 {
		path := filepath.Join(e.outputDir, SummaryFileName)
		if err := WriteSummaries(path, result.Summaries); err != nil {
			result.Duration = time.Since(start)
			return result, apperrors.New(apperrors.ErrorTypeStorage, component, "write_summary", err)
		}
		result.SummaryFile = path
	}

	result.Duration = time.Since(start)
	e.logger.InfoWithContext(ctx, "indicator batch complete",
		"processed", result.Processed(),
		"failed", len(result.Failures),
		"duration", result.Duration,
	)
	return result, nil
}

// inputFiles lists top-level csv files, excluding the engine's own summary.
func inputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == SummaryFileName {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func summarize(f *Frame, stem, file string) Summary {
	s := Summary{
		Symbol:       SymbolFromStem(stem),
		File:         file,
		TotalRecords: f.Len(),
		EMACross:     CrossNoData.String(),
		RSISignal:    RSINoData.String(),
		MACDCross:    MomentumBearish.String(),
		BBPosition:   PositionInside.String(),
		ADXStrength:  StrengthWeak.String(),
	}
	last := f.Len() - 1
	if last < 0 {
		return s
	}

	price := f.Bars[last].Close
	s.Close = num(price)
	s.RSI = num(f.RSI[last])
	s.SMA = num(f.SMA[last])
	s.EMAFast = num(f.EMAFast[last])
	s.EMASlow = num(f.EMASlow[last])
	s.EMACross = f.EMACross[last].String()
	s.ATR = num(f.ATR[last])
	s.MACD = num(f.MACD[last])
	s.MACDSignal = num(f.MACDSignal[last])
	s.BBUpper = num(f.BBUpper[last])
	s.BBLower = num(f.BBLower[last])
	s.VWAP = num(f.VWAP[last])
	s.ADX = num(f.ADX[last])
	s.RSISignal = ClassifyRSI(f.RSI[last]).String()
	s.MACDCross = ClassifyMACD(f.MACD[last], f.MACDSignal[last]).String()
	s.BBPosition = ClassifyBands(price, f.BBUpper[last], f.BBLower[last]).String()
	s.ADXStrength = ClassifyADX(f.ADX[last]).String()
	return s
}

// SummaryHeader is the column order of the summary table.
var SummaryHeader = []string{
	"symbol", "file_processed", "total_records",
	"current_price", "current_rsi", "current_sma", "current_ema9", "current_ema21",
	"current_ema_cross_signal", "current_atr", "current_macd", "current_macd_signal",
	"current_bb_upper", "current_bb_lower", "current_vwap", "current_adx",
	"rsi_signal", "macd_signal", "bb_position", "adx_strength", "consolidated_file",
}

// WriteSummaries writes one summary row per processed file.
func WriteSummaries(path string, summaries []Summary) error {
	table := storage.NewTable(SummaryHeader)
	for _, s := range summaries {
		record := []string{
			s.Symbol, s.File, formatCount(s.TotalRecords),
			s.Close, s.RSI, s.SMA, s.EMAFast, s.EMASlow,
			s.EMACross, s.ATR, s.MACD, s.MACDSignal,
			s.BBUpper, s.BBLower, s.VWAP, s.ADX,
			s.RSISignal, s.MACDCross, s.BBPosition, s.ADXStrength, s.Output("consolidated"),
		}
		if err := table.Append(record); err != nil {
			return err
		}
	}
	return storage.WriteTable(path, table)
}

// CheckCapabilities evaluates every indicator on a reference series and
// verifies that outputDir is writable. It is meant to run before any batch so
// that a broken installation fails with one clear message.
func CheckCapabilities(outputDir string) error {
	frame := Compute(referenceBars(60))

	series := []struct {
		name   string
		first  int
		values []bool
	}{
		{"RSI_14", RSIPeriod, presence(frame.RSI)},
		{"SMA_50", SMAPeriod - 1, presence(frame.SMA)},
		{"EMA_9", EMAFastPeriod - 1, presence(frame.EMAFast)},
		{"EMA_21", EMASlowPeriod - 1, presence(frame.EMASlow)},
		{"ATR_14", ATRPeriod, presence(frame.ATR)},
		{"MACD", MACDSlowPeriod + MACDSignalLen - 2, presence(frame.MACD)},
		{"MACD_Signal", MACDSlowPeriod + MACDSignalLen - 2, presence(frame.MACDSignal)},
		{"BB_Upper", BBPeriod - 1, presence(frame.BBUpper)},
		{"VWAP", 0, presence(frame.VWAP)},
		{"OBV", 0, presence(frame.OBV)},
		{"ADX", 2*ADXPeriod - 1, presence(frame.ADX)},
	}
	for _, s := range series {
		if got := firstPresent(s.values); got != s.first {
			return apperrors.New(apperrors.ErrorTypeConfiguration, component, "check_capabilities",
				fmt.Errorf("indicator %s first defined at bar %d, want %d", s.name, got, s.first))
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return apperrors.New(apperrors.ErrorTypeStorage, component, "check_capabilities",
			fmt.Errorf("output directory %s is not usable: %w", outputDir, err))
	}
	probe, err := os.CreateTemp(outputDir, ".probe-*")
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeStorage, component, "check_capabilities",
			fmt.Errorf("output directory %s is not writable: %w", outputDir, err))
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// referenceBars builds a deterministic oscillating series with a mild trend.
func referenceBars(n int) []Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		swing := float64(i%7) - 3
		price := 100 + float64(i)*0.5 + swing
		bars[i] = Bar{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   models.Some(price - 0.25),
			High:   models.Some(price + 1),
			Low:    models.Some(price - 1),
			Close:  models.Some(price),
			Volume: models.Some(10 + float64(i%5)),
		}
	}
	return bars
}

func presence(values []models.Value) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = v.Valid()
	}
	return out
}

func firstPresent(present []bool) int {
	for i, ok := range present {
		if ok {
			return i
		}
	}
	return -1
}
