// Package logger provides structured logging with context propagation for the
// candle fetcher. It wraps the standard library's slog package with component
// loggers, run-scoped context fields and rotating file output.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/johnayoung/go-delta-candles/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// RunIDKey is the context key for the fetch run ID
	RunIDKey ContextKey = "run_id"
	// ComponentKey is the context key for component name
	ComponentKey ContextKey = "component"
	// OperationKey is the context key for operation name
	OperationKey ContextKey = "operation"
	// SymbolKey is the context key for the instrument symbol
	SymbolKey ContextKey = "symbol"
	// ResolutionKey is the context key for the candle resolution
	ResolutionKey ContextKey = "resolution"
	// FileKey is the context key for the file being processed
	FileKey ContextKey = "file"
)

// LoggerManager manages structured logging for the application
type LoggerManager struct {
	baseLogger     *slog.Logger
	config         config.LoggingConfig
	writer         io.WriteCloser
	mu             sync.Mutex
	componentCache map[string]*slog.Logger
}

// ComponentLogger represents a logger for a specific component
type ComponentLogger struct {
	*slog.Logger
	component string
}

// NewLoggerManager creates a new logger manager with the specified configuration
func NewLoggerManager(cfg config.LoggingConfig) (*LoggerManager, error) {
	writer, err := createWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create log writer: %w", err)
	}

	return newLoggerManager(cfg, writer), nil
}

func newLoggerManager(cfg config.LoggingConfig, writer io.WriteCloser) *LoggerManager {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.Level),
		AddSource: cfg.Level == "debug",
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(strings.ToUpper(level.String()))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	baseAttrs := make([]slog.Attr, 0, len(cfg.ContextFields))
	for key, value := range cfg.ContextFields {
		baseAttrs = append(baseAttrs, slog.String(key, value))
	}
	if len(baseAttrs) > 0 {
		handler = handler.WithAttrs(baseAttrs)
	}

	return &LoggerManager{
		baseLogger:     slog.New(handler),
		config:         cfg,
		writer:         writer,
		componentCache: make(map[string]*slog.Logger),
	}
}

// createWriter creates the appropriate writer based on configuration
func createWriter(cfg config.LoggingConfig) (io.WriteCloser, error) {
	switch cfg.Output {
	case "stderr":
		return nopWriteCloser{os.Stderr}, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required when output is 'file'")
		}

		dir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}, nil
	default:
		return nopWriteCloser{os.Stdout}, nil
	}
}

// nopWriteCloser wraps an io.Writer to provide a Close method
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger returns the base logger instance
func (lm *LoggerManager) GetLogger() *slog.Logger {
	return lm.baseLogger
}

// GetComponentLogger returns a logger for the specified component
func (lm *LoggerManager) GetComponentLogger(component string) *ComponentLogger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if cached, exists := lm.componentCache[component]; exists {
		return &ComponentLogger{Logger: cached, component: component}
	}

	componentLogger := lm.baseLogger.With(slog.String("component", component))
	lm.componentCache[component] = componentLogger

	return &ComponentLogger{Logger: componentLogger, component: component}
}

// WithContext creates a logger that includes context values
func (lm *LoggerManager) WithContext(ctx context.Context) *slog.Logger {
	attrs := extractContextAttributes(ctx)
	if len(attrs) == 0 {
		return lm.baseLogger
	}
	return lm.baseLogger.With(attrs...)
}

// Close closes the logger and any associated resources
func (lm *LoggerManager) Close() error {
	if lm.writer != nil {
		return lm.writer.Close()
	}
	return nil
}

// extractContextAttributes extracts logging attributes from context
func extractContextAttributes(ctx context.Context) []any {
	var attrs []any

	for _, key := range []ContextKey{RunIDKey, OperationKey, SymbolKey, ResolutionKey, FileKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}

	return attrs
}

// WithRunID adds a fetch run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithOperation adds an operation name to the context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// WithSymbol adds an instrument symbol to the context
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, SymbolKey, symbol)
}

// WithResolution adds a candle resolution to the context
func WithResolution(ctx context.Context, resolution string) context.Context {
	return context.WithValue(ctx, ResolutionKey, resolution)
}

// WithFile adds the file being processed to the context
func WithFile(ctx context.Context, file string) context.Context {
	return context.WithValue(ctx, FileKey, file)
}

// GetRunID extracts the run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// ErrorWithContext logs an error with full context information
func (cl *ComponentLogger) ErrorWithContext(ctx context.Context, msg string, err error, args ...any) {
	attrs := extractContextAttributes(ctx)
	attrs = append(attrs, slog.Any("error", err))
	attrs = append(attrs, args...)
	cl.Error(msg, attrs...)
}

// WarnWithContext logs a warning with full context information
func (cl *ComponentLogger) WarnWithContext(ctx context.Context, msg string, args ...any) {
	attrs := extractContextAttributes(ctx)
	attrs = append(attrs, args...)
	cl.Warn(msg, attrs...)
}

// InfoWithContext logs info with full context information
func (cl *ComponentLogger) InfoWithContext(ctx context.Context, msg string, args ...any) {
	attrs := extractContextAttributes(ctx)
	attrs = append(attrs, args...)
	cl.Info(msg, attrs...)
}

// Component returns the component name the logger was created for.
func (cl *ComponentLogger) Component() string {
	return cl.component
}

// Wrap adapts a logger handed to a constructor into a ComponentLogger so the
// *WithContext helpers are available. The logger is expected to carry its
// component attribute already; nil yields a discarding logger.
func Wrap(log *slog.Logger, component string) *ComponentLogger {
	if log == nil {
		log = Discard()
	}
	return &ComponentLogger{Logger: log, component: component}
}

// Discard returns a logger that drops every record. Constructors use it when
// the caller passes a nil logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
