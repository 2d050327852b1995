// Package retry provides an explicit attempt loop with linear backoff and
// bounded jitter.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a retry schedule. The delay before attempt n+1 is
// Base*n plus a random duration in [0, Jitter).
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Jitter      time.Duration
}

// Delay computes the backoff after the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base * time.Duration(attempt)
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping the policy delay between
// attempts. It stops early when fn succeeds, when retryable reports the
// error as permanent, or when ctx is cancelled during a backoff wait.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == p.MaxAttempts {
			return err
		}
		if serr := Sleep(ctx, p.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
