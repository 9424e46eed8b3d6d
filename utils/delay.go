package utils

import (
	"context"
	"math/rand"
	"time"
)

// RandomDelay pauses for a random duration in [min, max). It returns early
// with ctx.Err() if the context is cancelled. A zero range does not pause.
// Pass time.Duration values like: RandomDelay(ctx, 2*time.Second, 5*time.Second)
//
// WHY RANDOM? Marketplace pages are visited one after another from the same
// browser. A fixed gap between them is an easy pattern to spot; a random one
// looks more like a person clicking through saved searches.
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	if max <= 0 {
		return nil
	}
	sleep := min
	if diff := max - min; diff > 0 {
		sleep += time.Duration(rand.Int63n(int64(diff))) // Int63n panics on 0, hence the guard
	}
	return Sleep(ctx, sleep)
}

// Sleep waits for d or until ctx is done.
// Unlike time.Sleep it lets SIGINT stop a long scroll wait straight away.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
