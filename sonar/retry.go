package sonar

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"
)

const (
	defaultMaxRetries = 3
	baseDelay         = 500 * time.Millisecond
	maxDelay          = 10 * time.Second
)

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoffDelay(attempt int) time.Duration {
	return min(time.Duration(float64(baseDelay)*math.Pow(2, float64(attempt))), maxDelay)
}

func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(backoffDelay(attempt - 1)):
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !isRetryable(lastErr) {
			return result, lastErr
		}
	}

	return result, lastErr
}

// retryableStatusError satisfies net.Error so withRetry treats the status
// codes in isRetryableStatus like transient network timeouts.
type retryableStatusError struct {
	StatusCode int
}

func (e *retryableStatusError) Error() string {
	return http.StatusText(e.StatusCode)
}

func (e *retryableStatusError) Timeout() bool {
	return true
}

func (e *retryableStatusError) Temporary() bool {
	return true
}
