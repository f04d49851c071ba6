package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalFirstCallPassesImmediately(t *testing.T) {
	limiter := NewInterval(500 * time.Millisecond)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestIntervalEnforcesSpacing(t *testing.T) {
	limiter := NewInterval(80 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestIntervalZeroDelayNeverBlocks(t *testing.T) {
	limiter := NewInterval(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestIntervalHonorsCancellation(t *testing.T) {
	limiter := NewInterval(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Wait(ctx))

	cancel()
	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoneNeverBlocks(t *testing.T) {
	var limiter None
	assert.NoError(t, limiter.Wait(context.Background()))
}
