// Package retry retries infrastructure operations such as opening database
// connections. Workflow runs are never retried.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
)

// Strategy selects how the delay grows between attempts
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
	Strategy      Strategy      `json:"strategy" yaml:"strategy"`
	Multiplier    float64       `json:"multiplier" yaml:"multiplier"`
	JitterPercent float64       `json:"jitter_percent" yaml:"jitter_percent"`
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		Strategy:      StrategyExponential,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}
}

// Func is one attempt; attempt starts at 1
type Func func(ctx context.Context, attempt int) error

// Condition reports whether err is worth another attempt
type Condition func(err error, attempt int) bool

// Retryer runs a Func until it succeeds, the condition rejects the error or
// the attempts are used up.
type Retryer struct {
	config    *Config
	condition Condition
	onRetry   func(attempt int, err error, delay time.Duration)
}

// New creates a retryer. A nil config uses DefaultConfig.
func New(config *Config) *Retryer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Retryer{config: config, condition: DefaultCondition}
}

// WithCondition replaces the retry condition
func (r *Retryer) WithCondition(condition Condition) *Retryer {
	r.condition = condition
	return r
}

// WithOnRetry sets a callback invoked before each wait
func (r *Retryer) WithOnRetry(onRetry func(attempt int, err error, delay time.Duration)) *Retryer {
	r.onRetry = onRetry
	return r
}

// Execute runs fn with retries. The last error is returned wrapped with the
// number of attempts made.
func (r *Retryer) Execute(ctx context.Context, fn Func) error {
	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempts = attempt
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == r.config.MaxAttempts || !r.condition(lastErr, attempt) {
			break
		}

		delay := r.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if appErr := errors.GetAppError(lastErr); appErr != nil {
		return appErr.WithContext("retry_attempts", attempts)
	}
	return errors.Wrap(lastErr, errors.ErrorTypeInternal, errors.CodeInternal,
		fmt.Sprintf("operation failed after %d attempts", attempts)).
		WithContext("retry_attempts", attempts)
}

// Delay returns the wait after the given failed attempt
func (r *Retryer) Delay(attempt int) time.Duration {
	cfg := r.config
	var delay time.Duration
	switch cfg.Strategy {
	case StrategyFixed:
		delay = cfg.InitialDelay
	case StrategyLinear:
		delay = cfg.InitialDelay * time.Duration(attempt)
	default:
		multiplier := cfg.Multiplier
		if multiplier <= 1.0 {
			multiplier = 2.0
		}
		delay = time.Duration(float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return addJitter(delay, cfg.JitterPercent)
}

// DefaultCondition retries everything except validation and not-found errors
// and context cancellation.
func DefaultCondition(err error, _ int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr := errors.GetAppError(err); appErr != nil {
		switch appErr.Type {
		case errors.ErrorTypeValidation, errors.ErrorTypeNotFound, errors.ErrorTypeConfiguration:
			return false
		}
	}
	return true
}

// addJitter spreads concurrent retries apart
func addJitter(delay time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 || delay <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterPercent
	adjusted := time.Duration(float64(delay) + (rand.Float64()-0.5)*2*jitter)
	if adjusted < 0 {
		return delay / 2
	}
	return adjusted
}
