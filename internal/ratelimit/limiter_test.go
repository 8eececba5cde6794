package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(cfg Config) (*Registry, *time.Time) {
	r := NewRegistry(cfg, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.SetNow(func() time.Time { return now })
	return r, &now
}

func TestAcquireDrainsBucket(t *testing.T) {
	r, _ := newTestRegistry(Config{Capacity: 3, RefillRate: 1})

	for i := 0; i < 3; i++ {
		assert.True(t, r.Acquire("t1:ch1", 1), "acquire %d should succeed", i)
	}
	assert.False(t, r.Acquire("t1:ch1", 1), "empty bucket must deny")
	assert.Equal(t, float64(0), r.Tokens("t1:ch1"))
}

func TestAcquireRefillsOverTime(t *testing.T) {
	r, now := newTestRegistry(Config{Capacity: 10, RefillRate: 10})

	for i := 0; i < 10; i++ {
		require.True(t, r.Acquire("key", 1))
	}
	require.False(t, r.Acquire("key", 1))

	// 10 tokens/sec: after 300ms exactly 3 more acquires fit.
	*now = now.Add(300 * time.Millisecond)
	for i := 0; i < 3; i++ {
		assert.True(t, r.Acquire("key", 1), "refilled acquire %d", i)
	}
	assert.False(t, r.Acquire("key", 1))
}

func TestTokensNeverExceedCapacity(t *testing.T) {
	r, now := newTestRegistry(Config{Capacity: 5, RefillRate: 100})

	require.True(t, r.Acquire("key", 1))
	*now = now.Add(time.Hour)

	assert.Equal(t, float64(5), r.Tokens("key"))
}

func TestKeysAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(Config{Capacity: 1, RefillRate: 1})

	assert.True(t, r.Acquire("t1:ch1", 1))
	assert.False(t, r.Acquire("t1:ch1", 1))
	assert.True(t, r.Acquire("t1:ch2", 1), "other channel has its own bucket")
	assert.True(t, r.Acquire("t2:ch1", 1), "other tenant has its own bucket")
}

func TestGlobalBucketCapsAllKeys(t *testing.T) {
	r, _ := newTestRegistry(Config{
		Capacity:         10,
		RefillRate:       10,
		GlobalCapacity:   2,
		GlobalRefillRate: 1,
	})

	assert.True(t, r.Acquire("a", 1))
	assert.True(t, r.Acquire("b", 1))
	assert.False(t, r.Acquire("c", 1), "global bucket is exhausted")
}

func TestGlobalRefundOnPerKeyDenial(t *testing.T) {
	r, _ := newTestRegistry(Config{
		Capacity:         1,
		RefillRate:       0,
		GlobalCapacity:   10,
		GlobalRefillRate: 0,
	})

	require.True(t, r.Acquire("key", 1))
	// Per-key bucket is empty now; the denial must refund the global token.
	require.False(t, r.Acquire("key", 1))

	// Fresh keys each have their own full bucket, so every acquire here
	// spends a global token. All 9 remaining must still be there.
	for i := 0; i < 9; i++ {
		assert.True(t, r.Acquire(fmt.Sprintf("other-%d", i), 1),
			"global tokens must survive refunds, acquire %d", i)
	}
	assert.False(t, r.Acquire("last", 1), "global bucket is now exhausted")
}

func TestWaitForTokenSucceedsImmediately(t *testing.T) {
	r := NewRegistry(Config{Capacity: 1, RefillRate: 1}, nil)

	assert.True(t, r.WaitForToken(context.Background(), "key", 1, time.Second))
}

func TestWaitForTokenTimesOut(t *testing.T) {
	r := NewRegistry(Config{Capacity: 1, RefillRate: 0}, nil)
	require.True(t, r.Acquire("key", 1))

	start := time.Now()
	ok := r.WaitForToken(context.Background(), "key", 1, 120*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitForTokenHonorsContext(t *testing.T) {
	r := NewRegistry(Config{Capacity: 1, RefillRate: 0}, nil)
	require.True(t, r.Acquire("key", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, r.WaitForToken(ctx, "key", 1, time.Minute))
}

func TestWaitForTokenRecoversAfterRefill(t *testing.T) {
	r := NewRegistry(Config{Capacity: 1, RefillRate: 20}, nil)
	require.True(t, r.Acquire("key", 1))

	// 20 tokens/sec refills one token in 50ms, well inside the timeout.
	assert.True(t, r.WaitForToken(context.Background(), "key", 1, time.Second))
}
