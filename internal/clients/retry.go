package clients

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines transport retry behavior for platform calls
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialBackoff  time.Duration // Initial backoff duration
	MaxBackoff      time.Duration // Maximum backoff duration
	BackoffFactor   float64       // Multiplier for exponential backoff
	Jitter          float64       // Random jitter factor (0-1)
	RetryableErrors []int         // HTTP status codes to retry
	NoNetworkRetry  bool          // Surface network errors after the first attempt
}

// DefaultRetryConfig returns the retry configuration used by the platform clients
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableErrors: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

// RetryResult contains the result of a retried HTTP call
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
	RetryAfter    time.Duration // From Retry-After header if present
}

// Retrier retries throttled or unavailable HTTP calls with exponential backoff
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

// ThrottleOnly returns a retrier with the same backoff that retries only 429
// responses. Non-idempotent calls use it: after a network error or a 5xx the
// write may already have been applied.
func (r *Retrier) ThrottleOnly() *Retrier {
	config := *r.config
	config.RetryableErrors = []int{http.StatusTooManyRequests}
	config.NoNetworkRetry = true
	return &Retrier{config: &config}
}

// MaxRetries returns the number of retries after the first attempt
func (r *Retrier) MaxRetries() int {
	return r.config.MaxRetries
}

// Sleep waits out the backoff for attempt, returning early with the context error
func (r *Retrier) Sleep(ctx context.Context, attempt int, retryAfter time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.CalculateBackoff(attempt, retryAfter)):
		return nil
	}
}

// ShouldRetry determines if a status code or network error should be retried
func (r *Retrier) ShouldRetry(statusCode int, err error) bool {
	if err != nil && statusCode == 0 {
		return !r.config.NoNetworkRetry
	}
	for _, code := range r.config.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// CalculateBackoff calculates the backoff duration for a given attempt
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(retryAfter, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// RetryableResponseFunc issues one HTTP attempt; it must build a fresh request each call
type RetryableResponseFunc func(ctx context.Context) (*http.Response, error)

// DoHTTP executes an HTTP operation with retry logic. Bodies of discarded
// attempts are closed; the final response is returned to the caller.
func (r *Retrier) DoHTTP(ctx context.Context, fn RetryableResponseFunc) (*http.Response, *RetryResult) {
	result := &RetryResult{}
	startTime := time.Now()

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1

		resp, err := fn(ctx)
		result.LastError = err
		result.RetryAfter = 0

		if err != nil {
			if !r.ShouldRetry(0, err) || attempt >= r.config.MaxRetries {
				result.TotalDuration = time.Since(startTime)
				return nil, result
			}
		} else {
			if !r.ShouldRetry(resp.StatusCode, nil) || attempt >= r.config.MaxRetries {
				result.TotalDuration = time.Since(startTime)
				return resp, result
			}
			result.RetryAfter = ParseRetryAfter(resp)
			resp.Body.Close()
		}

		if err := r.Sleep(ctx, attempt, result.RetryAfter); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(startTime)
			return nil, result
		}
	}
}
