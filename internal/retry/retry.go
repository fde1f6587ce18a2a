// Package retry runs an operation with exponential backoff. It is used for
// offsite uploads only; calls to the Qdrant API are never retried.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Options configures exponential backoff for retries.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// OnRetry, if set, is called before sleeping between attempts.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Default backoff settings used when opts are zero/invalid.
var Default = Options{
	MaxAttempts:  5,
	InitialDelay: 300 * time.Millisecond,
	MaxDelay:     8 * time.Second,
	Multiplier:   2.0,
	Jitter:       true,
}

type IsRetryableFunc func(error) bool

// normalize fills zero or invalid fields from Default.
func (o Options) normalize() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = Default.MaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = Default.InitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = Default.MaxDelay
	}
	if o.MaxDelay < o.InitialDelay {
		o.MaxDelay = o.InitialDelay
	}
	if o.Multiplier < 1 {
		o.Multiplier = Default.Multiplier
	}
	return o
}

// Backoff returns the un-jittered wait after the given failed attempt (1-based).
func (o Options) Backoff(attempt int) time.Duration {
	o = o.normalize()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(o.InitialDelay) * math.Pow(o.Multiplier, float64(attempt-1))
	if d > float64(o.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return o.MaxDelay
	}
	return time.Duration(d)
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// context is done, or attempts are exhausted. Returns the last error.
func Do(ctx context.Context, opts Options, isRetryable IsRetryableFunc, fn func(context.Context) error) error {
	opts = opts.normalize()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt >= opts.MaxAttempts {
			return err
		}

		wait := opts.Backoff(attempt)
		if opts.Jitter {
			// +/-20%.
			delta := float64(wait) * 0.2
			wait = time.Duration(math.Max(0, float64(wait)+(rand.Float64()*2-1)*delta))
			if wait > opts.MaxDelay {
				wait = opts.MaxDelay
			}
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
