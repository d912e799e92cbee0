package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return http.StatusText(int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestWithRetryConfigRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return statusErr(http.StatusServiceUnavailable)
		}
		return nil
	}, nil, fastConfig())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryConfigStopsOnFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad request")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return Fatal(boom)
	}, nil, fastConfig())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryConfigGivesUp(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.MaxAttempts = 3

	var retried []int
	cfg.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := WithRetryConfig(context.Background(), func() error {
		return statusErr(http.StatusTooManyRequests)
	}, NewAdaptiveLimiter(50, 1, 100, 1, 0.5), cfg)

	require.Error(t, err)
	assert.ErrorContains(t, err, "max attempts (3) exceeded")
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, http.StatusTooManyRequests, statusCode(err))
}

func TestWithRetryConfigHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetryConfig(ctx, func() error { return nil }, nil, fastConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiterBounds(t *testing.T) {
	t.Parallel()

	lim := NewAdaptiveLimiter(4, 2, 8, 1, 0.5)
	assert.Equal(t, 4.0, lim.CurrentLimit())

	lim.RateLimited()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.RateLimited()
	assert.Equal(t, 2.0, lim.CurrentLimit(), "never below min")

	lim.Success()
	assert.Equal(t, 2.0, lim.CurrentLimit(), "no growth right after a failure")

	fresh := NewAdaptiveLimiter(7, 1, 8, 5, 0.5)
	fresh.Success()
	assert.Equal(t, 8.0, fresh.CurrentLimit(), "never above max")
}
