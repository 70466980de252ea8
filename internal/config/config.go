// Package config provides centralized configuration management for the candle
// fetcher and the indicator engine. Configuration is assembled from defaults,
// an optional JSON or YAML file, an optional .env file and the process
// environment, then validated as a whole.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // display timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	// Application metadata
	AppName    string `json:"app_name" yaml:"app_name" env:"APP_NAME"`
	Version    string `json:"version" yaml:"version" env:"VERSION"`
	ConfigPath string `json:"-" yaml:"-" env:"CONFIG_PATH"`

	// Upstream history API
	Exchange ExchangeConfig `json:"exchange" yaml:"exchange"`

	// What to fetch and how fast
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Where series files go
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Indicator batch stage
	Indicators IndicatorConfig `json:"indicators" yaml:"indicators"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ExchangeConfig configures the history API client
type ExchangeConfig struct {
	BaseURL     string            `json:"base_url" yaml:"base_url" env:"DELTA_BASE_URL"`          // API root, without version
	APIVersion  string            `json:"api_version" yaml:"api_version" env:"DELTA_API_VERSION"` // Path version segment, e.g. v2
	Timeout     string            `json:"timeout" yaml:"timeout" env:"HTTP_TIMEOUT"`              // Per-request timeout
	UserAgent   string            `json:"user_agent" yaml:"user_agent" env:"HTTP_USER_AGENT"`     // User-Agent header
	RetryPolicy RetryPolicyConfig `json:"retry_policy" yaml:"retry_policy"`                       // Retries of transient failures
}

// RetryPolicyConfig configures retry behavior
type RetryPolicyConfig struct {
	MaxAttempts  int    `json:"max_attempts" yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS"` // Attempts per window, including the first
	InitialDelay string `json:"initial_delay" yaml:"initial_delay"`                        // Initial delay between retries
	MaxDelay     string `json:"max_delay" yaml:"max_delay"`                                // Maximum delay between retries
}

// FetchConfig configures the historical download
type FetchConfig struct {
	Symbols              []string `json:"symbols" yaml:"symbols" env:"SYMBOLS"`                                                 // Instruments to fetch
	Resolution           string   `json:"resolution" yaml:"resolution" env:"RESOLUTION"`                                        // One of 1m..1w
	DaysToFetch          int      `json:"days_to_fetch" yaml:"days_to_fetch" env:"DAYS_TO_FETCH"`                               // Range length in days
	Lookback             string   `json:"lookback" yaml:"lookback" env:"LOOKBACK"`                                              // Range length as a duration, overrides days
	MaxRequestsPerSecond float64  `json:"max_requests_per_second" yaml:"max_requests_per_second" env:"MAX_REQUESTS_PER_SECOND"` // Pacer rate
	SymbolPause          string   `json:"symbol_pause" yaml:"symbol_pause" env:"SYMBOL_PAUSE"`                                  // Pause between symbols
	DisplayTimezone      string   `json:"display_timezone" yaml:"display_timezone" env:"DISPLAY_TIMEZONE"`                      // Reporting timezone
}

// StorageConfig configures where fetched series are written
type StorageConfig struct {
	OutputDir  string `json:"output_dir" yaml:"output_dir" env:"OUTPUT_DIR"`    // Directory for series CSV files
	Mirror     string `json:"mirror" yaml:"mirror" env:"MIRROR_TYPE"`           // "none", "duckdb" or "sqlite"
	MirrorPath string `json:"mirror_path" yaml:"mirror_path" env:"MIRROR_PATH"` // Database file for the mirror
}

// IndicatorConfig configures the indicator batch stage
type IndicatorConfig struct {
	InputDir  string `json:"input_dir" yaml:"input_dir" env:"INDICATOR_INPUT_DIR"`    // Directory scanned for series files
	OutputDir string `json:"output_dir" yaml:"output_dir" env:"INDICATOR_OUTPUT_DIR"` // Root of the indicator folders
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level         string            `json:"level" yaml:"level" env:"LOG_LEVEL"`                   // Log level: debug, info, warn, error
	Format        string            `json:"format" yaml:"format" env:"LOG_FORMAT"`                // Log format: json, text
	Output        string            `json:"output" yaml:"output" env:"LOG_OUTPUT"`                // Output: stdout, stderr, file
	FilePath      string            `json:"file_path" yaml:"file_path" env:"LOG_FILE_PATH"`       // Log file path
	MaxSize       int               `json:"max_size" yaml:"max_size" env:"LOG_MAX_SIZE"`          // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" yaml:"max_backups" env:"LOG_MAX_BACKUPS"` // Maximum log file backups
	MaxAge        int               `json:"max_age" yaml:"max_age" env:"LOG_MAX_AGE"`             // Maximum log file age in days
	Compress      bool              `json:"compress" yaml:"compress" env:"LOG_COMPRESS"`          // Compress old log files
	ContextFields map[string]string `json:"context_fields" yaml:"context_fields"`                 // Additional context fields
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	config     *AppConfig
	configPath string
	envFile    string
	logger     *slog.Logger
}

// NewConfigManager creates a new configuration manager. envFile may be empty,
// in which case a .env in the working directory is used when present.
func NewConfigManager(configPath, envFile string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		envFile:    envFile,
		logger:     logger,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables (highest priority, including values from .env)
// 2. Configuration file
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig(ctx context.Context) (*AppConfig, error) {
	config := DefaultConfig()
	config.ConfigPath = cm.configPath

	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cm.loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.config = config
	cm.logger.Debug("configuration loaded",
		"config_path", cm.configPath,
		"symbols", strings.Join(config.Fetch.Symbols, ","),
		"resolution", config.Fetch.Resolution,
		"output_dir", config.Storage.OutputDir,
		"log_level", config.Logging.Level)

	return config, nil
}

// loadFromFile loads configuration from a JSON or YAML file, chosen by extension
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file %s does not exist", cm.configPath)
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	switch strings.ToLower(filepath.Ext(cm.configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

// loadDotEnv populates the process environment from a .env file. Variables
// already set in the environment win.
func (cm *ConfigManager) loadDotEnv() error {
	if cm.envFile != "" {
		return godotenv.Load(cm.envFile)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	var errs []string

	setString := func(key string, target *string) {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}
	setInt := func(key string, target *int) {
		if val := os.Getenv(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*target = n
		}
	}

	setString("APP_NAME", &config.AppName)
	setString("VERSION", &config.Version)

	// Exchange
	setString("DELTA_BASE_URL", &config.Exchange.BaseURL)
	setString("DELTA_API_VERSION", &config.Exchange.APIVersion)
	setString("HTTP_TIMEOUT", &config.Exchange.Timeout)
	setString("HTTP_USER_AGENT", &config.Exchange.UserAgent)
	setInt("RETRY_MAX_ATTEMPTS", &config.Exchange.RetryPolicy.MaxAttempts)

	// Fetch
	if val := os.Getenv("SYMBOLS"); val != "" {
		config.Fetch.Symbols = SplitList(val)
	}
	setString("RESOLUTION", &config.Fetch.Resolution)
	setInt("DAYS_TO_FETCH", &config.Fetch.DaysToFetch)
	setString("LOOKBACK", &config.Fetch.Lookback)
	if val := os.Getenv("MAX_REQUESTS_PER_SECOND"); val != "" {
		rps, err := strconv.ParseFloat(val, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("MAX_REQUESTS_PER_SECOND: %v", err))
		} else {
			config.Fetch.MaxRequestsPerSecond = rps
		}
	}
	setString("SYMBOL_PAUSE", &config.Fetch.SymbolPause)
	setString("DISPLAY_TIMEZONE", &config.Fetch.DisplayTimezone)

	// Storage
	setString("OUTPUT_DIR", &config.Storage.OutputDir)
	setString("MIRROR_TYPE", &config.Storage.Mirror)
	setString("MIRROR_PATH", &config.Storage.MirrorPath)

	// Indicators
	setString("INDICATOR_INPUT_DIR", &config.Indicators.InputDir)
	setString("INDICATOR_OUTPUT_DIR", &config.Indicators.OutputDir)

	// Logging
	setString("LOG_LEVEL", &config.Logging.Level)
	setString("LOG_FORMAT", &config.Logging.Format)
	setString("LOG_OUTPUT", &config.Logging.Output)
	setString("LOG_FILE_PATH", &config.Logging.FilePath)
	setInt("LOG_MAX_SIZE", &config.Logging.MaxSize)
	setInt("LOG_MAX_BACKUPS", &config.Logging.MaxBackups)
	setInt("LOG_MAX_AGE", &config.Logging.MaxAge)
	if val := os.Getenv("LOG_COMPRESS"); val != "" {
		config.Logging.Compress = val == "true"
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values:\n- %s", strings.Join(errs, "\n- "))
	}

	cm.logger.Debug("loaded configuration from environment variables")
	return nil
}

// Validate checks the configuration for consistency and required fields. It
// is exported so callers can re-validate after applying flag overrides.
func (cm *ConfigManager) Validate(config *AppConfig) error {
	return cm.validateConfig(config)
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var errors []string

	// Exchange
	if config.Exchange.BaseURL == "" {
		errors = append(errors, "exchange.base_url is required")
	}
	if config.Exchange.APIVersion == "" {
		errors = append(errors, "exchange.api_version is required")
	}
	if _, err := ParseDuration(config.Exchange.Timeout); err != nil {
		errors = append(errors, fmt.Sprintf("exchange.timeout is not a valid duration: %v", err))
	}
	if config.Exchange.RetryPolicy.MaxAttempts <= 0 {
		errors = append(errors, "exchange.retry_policy.max_attempts must be greater than 0")
	}
	for name, value := range map[string]string{
		"exchange.retry_policy.initial_delay": config.Exchange.RetryPolicy.InitialDelay,
		"exchange.retry_policy.max_delay":     config.Exchange.RetryPolicy.MaxDelay,
	} {
		if _, err := ParseDuration(value); err != nil {
			errors = append(errors, fmt.Sprintf("%s is not a valid duration: %v", name, err))
		}
	}

	// Fetch
	if len(config.Fetch.Symbols) == 0 {
		errors = append(errors, "fetch.symbols must contain at least one symbol")
	}
	for _, symbol := range config.Fetch.Symbols {
		if strings.TrimSpace(symbol) == "" {
			errors = append(errors, "fetch.symbols must not contain empty entries")
			break
		}
	}
	if !validResolutions[config.Fetch.Resolution] {
		errors = append(errors, fmt.Sprintf("fetch.resolution must be one of: %s", strings.Join(ResolutionNames, ", ")))
	}
	if config.Fetch.Lookback == "" && config.Fetch.DaysToFetch <= 0 {
		errors = append(errors, "fetch.days_to_fetch must be greater than 0")
	}
	if config.Fetch.Lookback != "" {
		if d, err := ParseDuration(config.Fetch.Lookback); err != nil || d <= 0 {
			errors = append(errors, "fetch.lookback must be a positive duration such as 10d or 36h")
		}
	}
	if config.Fetch.MaxRequestsPerSecond <= 0 {
		errors = append(errors, "fetch.max_requests_per_second must be greater than 0")
	}
	if _, err := ParseDuration(config.Fetch.SymbolPause); err != nil {
		errors = append(errors, fmt.Sprintf("fetch.symbol_pause is not a valid duration: %v", err))
	}
	if _, err := time.LoadLocation(config.Fetch.DisplayTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("fetch.display_timezone is not a known timezone: %v", err))
	}

	// Storage
	if config.Storage.OutputDir == "" {
		errors = append(errors, "storage.output_dir is required")
	}
	switch config.Storage.Mirror {
	case "", "none":
	case "duckdb", "sqlite":
		if config.Storage.MirrorPath == "" {
			errors = append(errors, fmt.Sprintf("storage.mirror_path is required for %s mirror", config.Storage.Mirror))
		}
	default:
		errors = append(errors, "storage.mirror must be one of: none, duckdb, sqlite")
	}

	// Indicators
	if config.Indicators.InputDir == "" {
		errors = append(errors, "indicators.input_dir is required")
	}
	if config.Indicators.OutputDir == "" {
		errors = append(errors, "indicators.output_dir is required")
	}

	// Logging
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errors = append(errors, "logging.level must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errors = append(errors, "logging.format must be one of: json, text")
	}

	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[config.Logging.Output] {
		errors = append(errors, "logging.output must be one of: stdout, stderr, file")
	}
	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errors = append(errors, "logging.file_path is required when logging.output is file")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *AppConfig {
	return cm.config
}

// ResolutionNames lists the accepted resolution values in ascending width.
var ResolutionNames = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "1d", "1w"}

var validResolutions = func() map[string]bool {
	m := make(map[string]bool, len(ResolutionNames))
	for _, r := range ResolutionNames {
		m[r] = true
	}
	return m
}()

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "delta-candles",
		Version: "1.0.0",
		Exchange: ExchangeConfig{
			BaseURL:    "https://api.india.delta.exchange",
			APIVersion: "v2",
			Timeout:    "30s",
			UserAgent:  "delta-candles/1.0",
			RetryPolicy: RetryPolicyConfig{
				MaxAttempts:  3,
				InitialDelay: "500ms",
				MaxDelay:     "10s",
			},
		},
		Fetch: FetchConfig{
			Symbols:              []string{"ETHUSD"},
			Resolution:           "1m",
			DaysToFetch:          10,
			MaxRequestsPerSecond: 5,
			SymbolPause:          "1s",
			DisplayTimezone:      "Asia/Kolkata",
		},
		Storage: StorageConfig{
			OutputDir:  "data",
			Mirror:     "none",
			MirrorPath: "",
		},
		Indicators: IndicatorConfig{
			InputDir:  "data",
			OutputDir: "data",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePath:   "logs/candles.log",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "delta-candles",
			},
		},
	}
}

// ParseDuration accepts Go durations as well as day and week units ("10d",
// "1w2d"). An empty string parses as zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return str2duration.ParseDuration(s)
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RangeDuration returns the length of the requested history range. Lookback
// takes precedence over DaysToFetch when both are set.
func (f FetchConfig) RangeDuration() (time.Duration, error) {
	if f.Lookback != "" {
		return ParseDuration(f.Lookback)
	}
	return time.Duration(f.DaysToFetch) * 24 * time.Hour, nil
}

// RequestInterval returns the minimum spacing between two paced requests.
func (f FetchConfig) RequestInterval() time.Duration {
	if f.MaxRequestsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / f.MaxRequestsPerSecond)
}

// Location loads the display timezone.
func (f FetchConfig) Location() (*time.Location, error) {
	return time.LoadLocation(f.DisplayTimezone)
}

// TimeoutDuration returns the parsed HTTP timeout.
func (e ExchangeConfig) TimeoutDuration() time.Duration {
	d, _ := ParseDuration(e.Timeout)
	return d
}

// String returns a JSON representation of the configuration
func (c *AppConfig) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
