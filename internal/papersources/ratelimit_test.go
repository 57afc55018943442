package papersources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	t.Run("allows a full burst then denies", func(t *testing.T) {
		rl := NewRateLimiter(3, 3)

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow(), "request %d within burst", i+1)
		}
		assert.False(t, rl.Allow())
	})

	t.Run("arxiv rate", func(t *testing.T) {
		rl := NewRateLimiter(1.0/3, 1)

		assert.True(t, rl.Allow())
		assert.False(t, rl.Allow())
	})
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("waits for next token", func(t *testing.T) {
		rl := NewRateLimiter(20, 1)
		require.NoError(t, rl.Wait(context.Background()))

		start := time.Now()
		require.NoError(t, rl.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("context canceled", func(t *testing.T) {
		rl := NewRateLimiter(0.1, 1)
		require.True(t, rl.Allow())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, rl.Wait(ctx))
	})
}

func TestRateLimiter_Tokens(t *testing.T) {
	rl := NewRateLimiter(1, 5)
	assert.InDelta(t, 5, rl.Tokens(), 0.1)

	rl.Allow()
	assert.InDelta(t, 4, rl.Tokens(), 0.1)
}

func TestRateLimiter_Concurrency(t *testing.T) {
	rl := NewRateLimiter(1000, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Wait(context.Background())
		}()
	}
	wg.Wait()
}
