package bier

import (
	"time"
)

// BackoffFunc returns how long to wait before retry number attempt (1-based,
// counting the attempt that just failed).
type BackoffFunc func(attempt int) time.Duration

// FixedBackoff waits the same duration between every attempt.
func FixedBackoff(wait time.Duration) BackoffFunc {
	return func(int) time.Duration { return wait }
}

// ExponentialBackoff doubles the wait after each failed attempt, starting at
// base and never exceeding cap.
func ExponentialBackoff(base, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		wait := base
		for i := 1; i < attempt; i++ {
			wait *= 2
			if wait >= cap {
				return cap
			}
		}
		if wait > cap {
			return cap
		}
		return wait
	}
}

// RetryPolicy is the one retry contract shared by every handle in this
// package. MaxAttempts counts the first try. A nil Retryable retries every
// error; otherwise a false return stops immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Retryable   func(error) bool
}

// DefaultItemPolicy is the retry budget for hosted feature layer operations.
func DefaultItemPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Backoff: FixedBackoff(2 * time.Second)}
}

// DefaultStorePolicy is the retry budget for object storage operations.
func DefaultStorePolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: FixedBackoff(2 * time.Second)}
}

// Do runs fn up to MaxAttempts times, sleeping per Backoff between attempts.
// onRetry, if non-nil, runs after each failed attempt except the last, before
// the backoff sleep. The error from the final attempt is returned as-is.
func (p RetryPolicy) Do(fn func() error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if p.Backoff != nil {
			time.Sleep(p.Backoff(attempt))
		}
	}
	return err
}
