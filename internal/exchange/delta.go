package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-delta-candles/internal/errors"
	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

const (
	// Delta Exchange India public API
	deltaBaseURL    = "https://api.india.delta.exchange"
	deltaAPIVersion = "v2"
	candlesEndpoint = "/history/candles"

	// HTTP client
	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "delta-candles/1.0"
	maxErrorBodyBytes     = 512

	// Retry-After values beyond this are clamped
	maxRetryAfter = 30 * time.Second

	component = "exchange"
)

// DeltaConfig configures a DeltaAdapter. Zero fields take the defaults above.
type DeltaConfig struct {
	BaseURL     string
	APIVersion  string
	UserAgent   string
	Timeout     time.Duration
	RetryPolicy apperrors.RetryPolicy
}

// DeltaAdapter implements CandleFetcher against the Delta Exchange history
// endpoint. Requests are retried only for transient failures; the caller
// still sees a single error per window once retries are exhausted.
type DeltaAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	userAgent  string
	retry      apperrors.RetryPolicy
	logger     *slog.Logger
}

// candlesResponse is the envelope of GET /history/candles
type candlesResponse struct {
	Success bool            `json:"success"`
	Result  []models.Candle `json:"result"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// NewDeltaAdapter creates a new Delta Exchange adapter
func NewDeltaAdapter(cfg DeltaConfig, log *slog.Logger) *DeltaAdapter {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = deltaBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = deltaAPIVersion
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.RetryPolicy.MaxAttempts <= 0 {
		cfg.RetryPolicy = apperrors.DefaultRetryPolicy()
	}

	return &DeltaAdapter{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: strings.Trim(cfg.APIVersion, "/"),
		userAgent:  cfg.UserAgent,
		retry:      cfg.RetryPolicy,
		logger:     log,
	}
}

// FetchCandles implements CandleFetcher
func (d *DeltaAdapter) FetchCandles(ctx context.Context, req FetchRequest) ([]models.Candle, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "fetch_candles", err)
	}

	endpoint := d.candlesURL(req)

	d.logger.Debug("fetching candles",
		"symbol", req.Symbol,
		"resolution", req.Resolution,
		"start", req.Window.Start,
		"end", req.Window.End,
	)

	var candles []models.Candle
	attempt := 0
	err := apperrors.Retry(ctx, d.retry, func() error {
		attempt++
		body, err := d.doRequest(ctx, endpoint)
		if err != nil {
			return err
		}
		candles, err = decodeCandles(body)
		return err
	}, func(err error, wait time.Duration) {
		d.logger.Warn("candle request failed, retrying",
			"symbol", req.Symbol,
			"window", req.Window.String(),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		ce := apperrors.Classify(err, component, "fetch_candles")
		ce.With("symbol", req.Symbol).With("window", req.Window.String()).With("attempts", attempt)
		return nil, ce
	}

	d.logger.Debug("fetched candles",
		"symbol", req.Symbol,
		"window", req.Window.String(),
		"count", len(candles),
	)

	return candles, nil
}

// candlesURL builds {base}/{version}/history/candles?resolution&symbol&start&end
func (d *DeltaAdapter) candlesURL(req FetchRequest) string {
	params := url.Values{}
	params.Set("resolution", string(req.Resolution))
	params.Set("symbol", req.Symbol)
	params.Set("start", strconv.FormatInt(req.Window.Start, 10))
	params.Set("end", strconv.FormatInt(req.Window.End, 10))

	return fmt.Sprintf("%s/%s%s?%s", d.baseURL, d.apiVersion, candlesEndpoint, params.Encode())
}

// doRequest performs a single GET and classifies every failure
func (d *DeltaAdapter) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "build_request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Classify(fmt.Errorf("request failed: %w", err), component, "http_get")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeNetwork, component, "read_body", fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ce := apperrors.NewHTTPError(component, "http_get", resp.StatusCode, truncate(body, maxErrorBodyBytes))
		if resp.StatusCode == http.StatusTooManyRequests {
			ce.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, ce
	}

	return body, nil
}

// decodeCandles unwraps the response envelope
func decodeCandles(body []byte) ([]models.Candle, error) {
	var envelope candlesResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeParse, component, "decode_response",
			fmt.Errorf("failed to parse candles response: %w", err))
	}

	if !envelope.Success {
		detail := strings.TrimSpace(string(envelope.Error))
		if detail == "" {
			detail = truncate(body, maxErrorBodyBytes)
		}
		return nil, apperrors.New(apperrors.ErrorTypeUpstream, component, "decode_response",
			fmt.Errorf("api reported success=false: %s", detail))
	}

	return envelope.Result, nil
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	d := time.Duration(seconds) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func truncate(body []byte, n int) string {
	body = bytes.TrimSpace(body)
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
