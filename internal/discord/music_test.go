package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/pkg/retrylimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() retrylimit.RetryConfig {
	retry := nodeRetryConfig(zerolog.Nop())
	retry.MaxAttempts = 2
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = time.Millisecond
	retry.Jitter = false
	return retry
}

func TestConnectNodeOutlastsRetryRounds(t *testing.T) {
	t.Parallel()

	want := node.New(node.Config{Host: "localhost", Port: 2333}, nil, nil, zerolog.Nop())
	attempts := 0
	dial := func() (*node.Client, error) {
		attempts++
		if attempts <= 7 {
			return nil, errors.New("connection refused")
		}
		return want, nil
	}

	got, err := connectNode(context.Background(), fastRetry(), dial, zerolog.Nop())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 8, attempts)
}

func TestConnectNodeStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	dial := func() (*node.Client, error) {
		attempts++
		if attempts == 5 {
			cancel()
		}
		return nil, errors.New("connection refused")
	}

	_, err := connectNode(ctx, fastRetry(), dial, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNodeRetryConfig(t *testing.T) {
	t.Parallel()

	retry := nodeRetryConfig(zerolog.Nop())
	assert.Equal(t, time.Second, retry.InitialDelay)
	assert.Equal(t, 30*time.Second, retry.MaxDelay)
}
