package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.True(t, IsRateLimitError(errors.New("Error 429, Message: quota exceeded")))
	assert.True(t, IsRateLimitError(errors.New("Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New("Rate limit reached for gpt-4o-mini")))
	assert.False(t, IsRateLimitError(errors.New("400 Bad Request")))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED")
	assert.InDelta(t, 45.387, ExtractRetryDelay(err).Seconds(), 0.001)

	assert.Equal(t, 2*time.Second, ExtractRetryDelay(errors.New("retryDelay: 2s")))
	assert.Zero(t, ExtractRetryDelay(errors.New("no hint here")))
	assert.Zero(t, ExtractRetryDelay(nil))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := NewRetryConfig(3)

	assert.Equal(t, DefaultInitialBackoff, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 3*time.Second, cfg.CalculateBackoff(1, 0))
	assert.Equal(t, 6*time.Second, cfg.CalculateBackoff(0, 5*time.Second))
	assert.Equal(t, DefaultMaxBackoff, cfg.CalculateBackoff(10, 0))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	l := NewLimiter(60)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}

func fastCaller(maxRetries int) *caller {
	return &caller{
		provider: "test",
		retry: &RetryConfig{
			MaxRetries:        maxRetries,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 1,
		},
		logger: arbor.NewNoOpLogger(),
	}
}

func TestCaller_RetriesRateLimitOnly(t *testing.T) {
	c := fastCaller(2)

	calls := 0
	err := c.call(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("429 Too Many Requests")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = c.call(context.Background(), func(context.Context) error {
		calls++
		return errors.New("invalid request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCaller_GivesUpAfterMaxRetries(t *testing.T) {
	c := fastCaller(1)

	calls := 0
	err := c.call(context.Background(), func(context.Context) error {
		calls++
		return errors.New("RESOURCE_EXHAUSTED")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCaller_AppliesTimeout(t *testing.T) {
	c := fastCaller(0)
	c.timeout = 20 * time.Millisecond

	err := c.call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
