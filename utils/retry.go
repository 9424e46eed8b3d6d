package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// RetryAfter lets fn ask for a specific wait before the next attempt,
// e.g. from a 429 response.
type RetryAfter struct {
	Err   error
	Delay time.Duration
}

func (r *RetryAfter) Error() string { return r.Err.Error() }
func (r *RetryAfter) Unwrap() error { return r.Err }

// Retry runs fn up to maxRetries times with exponential backoff starting at
// base. It stops early on success, on a Permanent error or when ctx is done.
//
// EXPONENTIAL BACKOFF with base = 1s means:
//   attempt 1 fails -> wait 1 second
//   attempt 2 fails -> wait 2 seconds
//   attempt 3 fails -> wait 4 seconds
//
// WHY? Discord answers 429 when a webhook is hit too often. Posting again
// right away only extends the limit, so each retry waits longer, and a
// RetryAfter from the server wins when it asks for more.
//
// Usage:
//
//	err := utils.Retry(ctx, log, 3, time.Second, func() error {
//	    return client.send(ctx, body)
//	})
func Retry(ctx context.Context, log zerolog.Logger, maxRetries int, base time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil // success, stop retrying
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}

		if attempt == maxRetries {
			break
		}

		wait := base * time.Duration(1<<uint(attempt-1)) // base, 2*base, 4*base...
		var ra *RetryAfter
		if errors.As(lastErr, &ra) && ra.Delay > wait {
			wait = ra.Delay
		}

		log.Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Dur("wait", wait).
			Msg("Attempt failed, retrying")

		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}
