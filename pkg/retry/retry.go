// Package retry provides exponential backoff retry logic for transient
// failures. Errors classified as invalid or fatal stop the retry loop
// immediately; everything else is assumed transient and retried until the
// attempt budget or the context runs out.
package retry

import (
	"context"
	stderrors "errors"
	"math/rand"
	"sync"
	"time"

	"github.com/songlinshu/vector/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config controls the backoff schedule.
type Config struct {
	// MaxAttempts bounds the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the growing delay.
	MaxDelay time.Duration
	// Multiplier grows the delay after each failure.
	Multiplier float64
	// AddJitter randomizes each delay by up to 25% to avoid thundering herds.
	AddJitter bool
}

// DefaultConfig returns the schedule used when callers have no opinion.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

func (c *Config) fillDefaults() error {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 || c.Multiplier < 0 {
		return stderrors.New("retry: negative schedule parameter")
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.MaxDelay < c.InitialDelay {
		return stderrors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return nil
}

// Do executes fn with exponential backoff. The last error is returned when
// all attempts fail. Invalid and fatal errors are never retried.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.fillDefaults(); err != nil {
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.IsInvalid(lastErr) || errors.IsFatal(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(withJitter(delay, cfg.AddJitter)):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

func withJitter(d time.Duration, enabled bool) time.Duration {
	if !enabled || d <= 0 {
		return d
	}
	randMu.Lock()
	factor := 0.75 + randSource.Float64()*0.5
	randMu.Unlock()
	return time.Duration(float64(d) * factor)
}
