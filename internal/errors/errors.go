// Package errors provides error classification and retry helpers for the
// candle fetcher. Failures are tagged with a type that decides whether they
// are worth retrying, and with the component and operation that produced them
// so that a skipped window or file can be diagnosed from the log alone.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrorType represents the classification of an error
type ErrorType string

const (
	// Retryable error types
	ErrorTypeNetwork     ErrorType = "network"      // Network connectivity issues
	ErrorTypeTimeout     ErrorType = "timeout"      // Request timeout
	ErrorTypeRateLimit   ErrorType = "rate_limit"   // HTTP 429 from the upstream API
	ErrorTypeServerError ErrorType = "server_error" // HTTP 5xx errors

	// Non-retryable error types
	ErrorTypeBadRequest    ErrorType = "bad_request"   // HTTP 4xx errors (except rate limit)
	ErrorTypeUpstream      ErrorType = "upstream"      // API answered success:false
	ErrorTypeParse         ErrorType = "parse"         // Undecodable response or input file
	ErrorTypeValidation    ErrorType = "validation"    // Invalid request or data
	ErrorTypeStorage       ErrorType = "storage"       // Writing output failed
	ErrorTypeConfiguration ErrorType = "configuration" // Configuration errors
	ErrorTypeCanceled      ErrorType = "canceled"      // Context canceled by the caller

	ErrorTypeUnknown ErrorType = "unknown" // Unclassified errors
)

// Severity represents the severity level of an error
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ClassifiedError represents an error with metadata for handling decisions
type ClassifiedError struct {
	Err        error          `json:"error"`
	Type       ErrorType      `json:"type"`
	Severity   Severity       `json:"severity"`
	Retryable  bool           `json:"retryable"`
	Component  string         `json:"component"`
	Operation  string         `json:"operation"`
	StatusCode int            `json:"status_code,omitempty"`
	RetryAfter time.Duration  `json:"retry_after,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", ce.Component, ce.Type, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is checks if the error is of the specified type
func (ce *ClassifiedError) Is(target error) bool {
	if t, ok := target.(*ClassifiedError); ok {
		return ce.Type == t.Type
	}
	return errors.Is(ce.Err, target)
}

// With attaches a context field and returns the receiver for chaining.
func (ce *ClassifiedError) With(key string, value any) *ClassifiedError {
	if ce.Context == nil {
		ce.Context = make(map[string]any)
	}
	ce.Context[key] = value
	return ce
}

// New creates a ClassifiedError of a known type.
func New(errorType ErrorType, component, operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Err:       err,
		Type:      errorType,
		Severity:  severityFor(errorType),
		Retryable: retryableType(errorType),
		Component: component,
		Operation: operation,
	}
}

// NewHTTPError classifies a non-success HTTP status.
func NewHTTPError(component, operation string, statusCode int, body string) *ClassifiedError {
	errorType := ErrorTypeBadRequest
	switch {
	case statusCode == 429:
		errorType = ErrorTypeRateLimit
	case statusCode >= 500:
		errorType = ErrorTypeServerError
	}
	ce := New(errorType, component, operation, fmt.Errorf("HTTP %d: %s", statusCode, strings.TrimSpace(body)))
	ce.StatusCode = statusCode
	return ce
}

// Classify returns err as a ClassifiedError, inspecting it when it has not
// been classified already.
func Classify(err error, component, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	return New(classifyErrorType(err), component, operation, err)
}

// classifyErrorType determines the error type based on the error content
func classifyErrorType(err error) ErrorType {
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCanceled
	}

	// Timeout checks come first: net.Error also covers timeouts
	if isTimeoutError(err) {
		return ErrorTypeTimeout
	}

	if isNetworkError(err) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return ErrorTypeRateLimit
	}

	if strings.Contains(errStr, "parse") ||
		strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "malformed") {
		return ErrorTypeParse
	}

	if strings.Contains(errStr, "validation") ||
		strings.Contains(errStr, "invalid") {
		return ErrorTypeValidation
	}

	if strings.Contains(errStr, "config") {
		return ErrorTypeConfiguration
	}

	return ErrorTypeUnknown
}

// isNetworkError checks if the error is network-related
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"no route to host",
		"host unreachable",
		"network unreachable",
		"no such host",
		"eof",
	}

	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// isTimeoutError checks if the error is timeout-related
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func severityFor(errorType ErrorType) Severity {
	switch errorType {
	case ErrorTypeConfiguration, ErrorTypeStorage:
		return SeverityHigh
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeCanceled:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func retryableType(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// RetryPolicy bounds the retries of a single operation.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used for upstream requests.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, the policy
// runs out of attempts, or ctx is done. A RetryAfter hint on a classified
// error overrides the backoff delay for that attempt. notify, when non-nil, is
// called before every wait.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error, notify func(err error, wait time.Duration)) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = policy.InitialDelay
	if policy.MaxDelay > 0 {
		exponential.MaxInterval = policy.MaxDelay
	}
	exponential.MaxElapsedTime = 0

	strategy := &retryAfterBackOff{BackOff: exponential}
	b := backoff.WithContext(backoff.WithMaxRetries(strategy, uint64(policy.MaxAttempts-1)), ctx)

	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var ce *ClassifiedError
		if errors.As(err, &ce) {
			if !ce.Retryable {
				return backoff.Permanent(err)
			}
			strategy.next = ce.RetryAfter
			return err
		}
		if !IsRetryable(Classify(err, "", "")) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(operation, b, notify)
}

// retryAfterBackOff lets a server supplied Retry-After replace one step of the
// wrapped policy.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (r *retryAfterBackOff) NextBackOff() time.Duration {
	d := r.BackOff.NextBackOff()
	if r.next > 0 && d != backoff.Stop {
		d = r.next
	}
	r.next = 0
	return d
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetErrorType extracts the error type from a classified error
func GetErrorType(err error) ErrorType {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeUnknown
}
