package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, rate.Inf, rl.Limit())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for range 100 {
		require.NoError(t, rl.Wait(ctx))
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, rl.Wait(ctx), "burst token is available immediately")
	require.Error(t, rl.Wait(ctx), "next token is far beyond the deadline")
}

func TestRateLimiter_UpdateLimits(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.UpdateLimits(50, 5)
	assert.Equal(t, rate.Limit(50), rl.Limit())

	rl.UpdateLimits(-1, 0)
	assert.Equal(t, rate.Inf, rl.Limit())
}
