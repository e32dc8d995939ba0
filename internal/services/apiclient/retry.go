package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultRetryAttempts  = 5
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultRetryMaxDelay  = 10 * time.Second
)

// StatusError reports a non-2xx response from a collaborator API.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable marks an otherwise successful response as worth another attempt
// (an empty completion, for example).
type Retryable struct {
	Err error
}

func (e *Retryable) Error() string { return e.Err.Error() }

func (e *Retryable) Unwrap() error { return e.Err }

// Retrier runs a request with exponential backoff on 408/429/5xx responses,
// network timeouts and Retryable errors. Context cancellation stops it
// immediately.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleeper     func(time.Duration)
}

// NewRetrier returns a Retrier with the default policy.
func NewRetrier() Retrier {
	return Retrier{
		MaxAttempts: DefaultRetryAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
	}
}

// Do calls fn until it succeeds, returns a permanent error or attempts run out.
func (r Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		delay, retry := r.delayFor(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	if made == 1 {
		return lastErr
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, made, lastErr)
}

// IsRetryable reports whether err is a transient transport failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var retryable *Retryable
	if errors.As(err, &retryable) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

func (r Retrier) delayFor(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if !IsRetryable(err) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return r.capDelay(statusErr.RetryAfter), true
	}
	return r.backoff(attempt), true
}

// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
func (r Retrier) backoff(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if r.MaxDelay > 0 && delay > r.MaxDelay/2 {
			return r.MaxDelay
		}
		delay *= 2
	}
	return r.capDelay(delay)
}

func (r Retrier) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (r Retrier) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if r.Sleeper != nil {
		r.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter understands both delta-seconds and HTTP-date values.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
