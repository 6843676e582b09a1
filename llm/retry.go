package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff for transient provider
// failures. Delays are in seconds to line up with Retry-After values,
// which providers report as fractional seconds.
type RetryPolicy struct {
	MaxRetries        int     // retry attempts after the initial call
	BaseDelay         float64 // first backoff in seconds
	MaxDelay          float64 // backoff ceiling in seconds
	BackoffMultiplier float64 // growth factor per attempt
	Jitter            bool    // randomize delays to spread out retries
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the policy the client installs when no
// middleware is supplied.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay returns the backoff for attempt n (0-indexed), capped at
// MaxDelay. With Jitter the result lands between 50% and 150% of the
// computed delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	seconds := p.BaseDelay * math.Pow(p.BackoffMultiplier, float64(attempt))
	if seconds > p.MaxDelay {
		seconds = p.MaxDelay
	}
	if p.Jitter {
		seconds *= 0.5 + rand.Float64()
	}
	return time.Duration(seconds * float64(time.Second))
}

// nextDelay picks the wait before the given retry. A rate limit error
// carrying Retry-After overrides the backoff schedule; when it asks for
// more than MaxDelay the second return is false and the caller gives up
// rather than waiting it out.
func (p RetryPolicy) nextDelay(err error, attempt int) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter != nil {
		wait := time.Duration(*rl.RetryAfter * float64(time.Second))
		if wait > time.Duration(p.MaxDelay*float64(time.Second)) {
			return 0, false
		}
		return wait, true
	}
	return p.Delay(attempt), true
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or
// exhausts the retry budget.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay, ok := policy.nextDelay(err, attempt)
		if !ok {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, &AbortError{ClientError: ClientError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-time.After(delay):
		}
	}
}

// RetryMiddleware wraps provider calls with the given retry policy so every
// Complete issued through the client is retried on transient failures.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		return Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
			return next(ctx, req)
		})
	}
}
