// Package retry runs idempotent operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed
var ErrExhausted = errors.New("retries exhausted")

// Config contains retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// InitialInterval is the wait before the first retry
	InitialInterval time.Duration
	// MaxInterval caps the backoff
	MaxInterval time.Duration
	// Multiplier grows the interval after each retry
	Multiplier float64
	// JitterFactor spreads each interval by ±factor
	JitterFactor float64
}

// DefaultConfig suits short upstream HTTP calls: 200ms, 400ms, 800ms
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// Callback observes each failed attempt before the wait
type Callback func(attempt int, err error, wait time.Duration)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent stops the retry loop; Do returns err unwrapped
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	config  Config
	onRetry Callback
}

// New fills zero values from DefaultConfig, except MaxRetries
func New(config Config) *Retrier {
	def := DefaultConfig()
	if config.InitialInterval <= 0 {
		config.InitialInterval = def.InitialInterval
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = def.MaxInterval
	}
	if config.Multiplier < 1 {
		config.Multiplier = def.Multiplier
	}
	config.JitterFactor = math.Min(math.Max(config.JitterFactor, 0), 1)
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Retrier{config: config}
}

// OnRetry registers a callback invoked before every wait
func (r *Retrier) OnRetry(cb Callback) *Retrier {
	r.onRetry = cb
	return r
}

// Do runs op until it succeeds, returns a permanent error, exhausts the
// retries or ctx is done. Exhaustion wraps both ErrExhausted and the last error.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		var p *permanentError
		if errors.As(lastErr, &p) {
			return p.err
		}
		if attempt >= r.config.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt+1, lastErr)
		}

		wait := r.Backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt+1, lastErr, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}

// Backoff returns the wait before retry number attempt+1
func (r *Retrier) Backoff(attempt int) time.Duration {
	interval := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))
	if j := r.config.JitterFactor; j > 0 {
		interval += (rand.Float64()*2 - 1) * interval * j
	}
	interval = math.Min(interval, float64(r.config.MaxInterval))
	if interval <= 0 {
		interval = float64(r.config.InitialInterval)
	}
	return time.Duration(interval)
}

// Do is shorthand for New(config).Do(ctx, op)
func Do(ctx context.Context, config Config, op Operation) error {
	return New(config).Do(ctx, op)
}
