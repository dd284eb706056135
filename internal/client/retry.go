package client

import (
	"context"
	"net/http"
	"time"
)

// RetryPolicy decides how often and how patiently a URL is re-requested.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration // Delay after the given failed attempt (1-based)
	Retryable   func(status int) bool
}

// DefaultRetryPolicy is 3 attempts, 1.5s*attempt backoff, 403/429/5xx retryable.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(1500 * time.Millisecond),
		Retryable:   StrictRetryable,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = NoBackoff
	}
	if p.Retryable == nil {
		p.Retryable = StrictRetryable
	}
	return p
}

func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

func NoBackoff(int) time.Duration {
	return 0
}

// StrictRetryable treats only blocking and server-side statuses as transient.
func StrictRetryable(status int) bool {
	return status == http.StatusForbidden ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// LenientRetryable retries every non-2xx status, including 404.
func LenientRetryable(status int) bool {
	return status < http.StatusOK || status >= http.StatusMultipleChoices
}

func isBlocked(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
