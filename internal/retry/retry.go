package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration
type Config struct {
	// MaxAttempts includes the initial attempt
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay by +/- this fraction (0.0 - 1.0)
	Jitter float64
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig suits archive downloads and uploads
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.3,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
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

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	c.Jitter = math.Max(0, math.Min(1, c.Jitter))
	return c
}

// Retry runs fn until it succeeds, returns a permanent error, the attempts
// run out or ctx is done. The last error is returned unwrapped.
func Retry(ctx context.Context, config Config, fn func(ctx context.Context) error) error {
	config = config.normalized()

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		delay := Backoff(config, attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

// Backoff returns the delay after the given attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay, with jitter
func Backoff(config Config, attempt int) time.Duration {
	config = config.normalized()
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if backoff > float64(config.MaxDelay) {
		backoff = float64(config.MaxDelay)
	}

	if config.Jitter > 0 {
		spread := backoff * config.Jitter
		backoff = backoff - spread + rand.Float64()*spread*2
	}

	return time.Duration(backoff)
}

// Do retries fn with DefaultConfig
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, DefaultConfig(), fn)
}
