package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikKhaire/100x-n8n/pkg/errors"
)

func fastConfig(attempts int) *Config {
	return &Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, Strategy: StrategyFixed}
}

func TestRetryer_Execute(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		var retried []int
		calls := 0
		err := New(fastConfig(3)).
			WithOnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }).
			Execute(testContext(t), func(_ context.Context, attempt int) error {
				calls++
				if attempt < 3 {
					return stderrors.New("connection refused")
				}
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := New(fastConfig(2)).Execute(testContext(t), func(context.Context, int) error {
			calls++
			return stderrors.New("connection refused")
		})
		require.Error(t, err)
		assert.Equal(t, 2, calls)
		appErr := errors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, 2, appErr.Context["retry_attempts"])
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("does not retry validation errors", func(t *testing.T) {
		calls := 0
		err := New(fastConfig(5)).Execute(testContext(t), func(context.Context, int) error {
			calls++
			return errors.ValidationError(errors.CodeInvalidInput, "bad dsn")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	})

	t.Run("custom condition", func(t *testing.T) {
		calls := 0
		err := New(fastConfig(5)).
			WithCondition(func(error, int) bool { return false }).
			Execute(testContext(t), func(context.Context, int) error {
				calls++
				return stderrors.New("boom")
			})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(testContext(t))
		cfg := &Config{MaxAttempts: 5, InitialDelay: time.Hour, Strategy: StrategyFixed}
		err := New(cfg).Execute(ctx, func(context.Context, int) error {
			cancel()
			return stderrors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		calls := 0
		err := New(&Config{}).Execute(testContext(t), func(context.Context, int) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryer_Delay(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		attempt int
		want    time.Duration
	}{
		{"fixed", Config{MaxAttempts: 1, InitialDelay: time.Second, Strategy: StrategyFixed}, 3, time.Second},
		{"linear", Config{MaxAttempts: 1, InitialDelay: time.Second, Strategy: StrategyLinear}, 3, 3 * time.Second},
		{"exponential", Config{MaxAttempts: 1, InitialDelay: time.Second, Strategy: StrategyExponential, Multiplier: 2}, 3, 4 * time.Second},
		{"capped", Config{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: 2 * time.Second, Strategy: StrategyExponential}, 5, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			assert.Equal(t, tt.want, New(&cfg).Delay(tt.attempt))
		})
	}

	t.Run("jitter stays within bounds", func(t *testing.T) {
		r := New(&Config{MaxAttempts: 1, InitialDelay: time.Second, Strategy: StrategyFixed, JitterPercent: 0.1})
		for i := 0; i < 20; i++ {
			d := r.Delay(1)
			assert.GreaterOrEqual(t, d, 900*time.Millisecond)
			assert.LessOrEqual(t, d, 1100*time.Millisecond)
		}
	})
}
