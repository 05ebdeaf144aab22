package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls retry of transient errors, i.e. an Error whose
// Retryable() is true (§7: "LLM transient
// errors retry with exponential backoff + jitter up to configured limit").
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// JitterFrac in [0,1] controls +/- randomization applied to each delay.
	JitterFrac float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		JitterFrac:  0.2,
	}
}

// SleepFunc lets callers substitute a deterministic sleep in tests.
type SleepFunc func(d time.Duration)

// RandFunc lets callers substitute a deterministic jitter source in tests.
type RandFunc func() float64

// Retry calls fn until it succeeds, a non-retryable error is returned, or the
// policy's attempt budget is exhausted. A Retry-After on the returned Error
// takes precedence over the computed backoff delay.
func Retry(ctx context.Context, policy RetryPolicy, sleep SleepFunc, rnd RandFunc, fn func() (Response, error)) (Response, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = func(d time.Duration) { time.Sleep(d) }
	}
	if rnd == nil {
		rnd = rand.Float64
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var le Error
		retryable := errors.As(err, &le) && le.Retryable()
		if !retryable || attempt == policy.MaxAttempts-1 {
			return Response{}, err
		}

		delay := backoffDelay(policy, attempt, rnd)
		if le != nil {
			if ra := le.RetryAfter(); ra != nil && *ra > 0 {
				delay = *ra
			}
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		default:
		}
		sleep(delay)
	}
	return Response{}, lastErr
}

func backoffDelay(policy RetryPolicy, attempt int, rnd RandFunc) time.Duration {
	base := float64(policy.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(policy.MaxDelay); policy.MaxDelay > 0 && base > max {
		base = max
	}
	if policy.JitterFrac > 0 {
		jitter := base * policy.JitterFrac * (2*rnd() - 1)
		base += jitter
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}
