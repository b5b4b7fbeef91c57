package direct

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestRetryPolicy_ExecuteWithRetry(t *testing.T) {
	policy := NewRetryPolicy(2)
	policy.InitialBackoff = time.Millisecond
	policy.MaxBackoff = time.Millisecond
	logger := arbor.NewLogger()

	t.Run("retries retryable status", func(t *testing.T) {
		calls := 0
		code, err := policy.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
			calls++
			if calls < 3 {
				return 503, nil
			}
			return 200, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 200, code)
		assert.Equal(t, 3, calls)
	})

	t.Run("client errors are final", func(t *testing.T) {
		calls := 0
		code, err := policy.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
			calls++
			return 404, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 404, code)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := policy.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
			calls++
			return 0, context.DeadlineExceeded
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 3, calls)
	})

	t.Run("plain errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := policy.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
			calls++
			return 0, errors.New("boom")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryPolicy_CalculateBackoff(t *testing.T) {
	policy := NewRetryPolicy(3)
	for attempt := 0; attempt < 10; attempt++ {
		backoff := policy.CalculateBackoff(attempt)
		assert.LessOrEqual(t, backoff, time.Duration(float64(policy.MaxBackoff)*1.25))
		assert.Greater(t, backoff, time.Duration(0))
	}
}
