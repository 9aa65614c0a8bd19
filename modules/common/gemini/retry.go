package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// RetryPolicy - attempts and wait between 429 retries
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetry - 3 attempts, 2 seconds apart
var DefaultRetry = RetryPolicy{Attempts: maxAttempts, Delay: retryDelay}

// WithRetry - run call, retrying while it fails with a rate limit (429)
// Any other error is returned as-is on the first failure.
func WithRetry[T any](ctx context.Context, label string, policy RetryPolicy, call func(context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			log.Printf("   🔄 [Gemini Retry] %s attempt %d/%d", label, attempt, attempts)
		}

		result, err := call(ctx)
		if err == nil {
			if attempt > 1 {
				log.Printf("✅ [Gemini Retry] %s succeeded on attempt %d/%d", label, attempt, attempts)
			}
			return result, nil
		}
		lastErr = err

		if !IsRateLimited(err) {
			return zero, err
		}
		log.Printf("⚠️  [Gemini Retry] %s hit rate limit (429) on attempt %d/%d", label, attempt, attempts)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
	}
	return zero, fmt.Errorf("%s rate limited after %d attempts: %w", label, attempts, lastErr)
}

// IsRateLimited - 429 from the genai API, or an error text that reads like one
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "resource_exhausted")
}
