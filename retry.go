package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrDatabaseResuming is returned when the database is still resuming after
// the retry policy is exhausted.
var ErrDatabaseResuming = errors.New("the database took too long to resume")

// RetryPolicy is a bounded retry schedule. Attempt n waits
// Delay*Multiplier^(n-1) before the next try.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.Delay)
	for i := 1; i < attempt; i++ {
		delay *= max(p.Multiplier, 1)
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, returns an error retryable rejects, or the
// policy runs out of attempts. Only errors for which retryable is true are
// retried; anything else is returned immediately.
func (p RetryPolicy) Do(ctx context.Context, what string, retryable func(error) bool, fn func(context.Context) error) error {
	maxAttempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		retriesTotal.WithLabelValues(what).Inc()

		if attempt == maxAttempts {
			break
		}
		delay := p.Backoff(attempt)
		log.Printf("%s: database is resuming (attempt %d/%d), waiting %s", what, attempt, maxAttempts, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", what, ErrDatabaseResuming, maxAttempts, lastErr)
}
