package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucketLimiter_BurstThenRefill(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Rate: 1, Burst: 2})

	require.True(t, l.Allow("ip1"))
	require.True(t, l.Allow("ip1"))
	require.False(t, l.Allow("ip1"))

	clk.Add(time.Second)
	require.True(t, l.Allow("ip1"))
	require.False(t, l.Allow("ip1"))

	// refill is capped at burst
	clk.Add(10 * time.Second)
	require.True(t, l.Allow("ip1"))
	require.True(t, l.Allow("ip1"))
	require.False(t, l.Allow("ip1"))
}

func TestTokenBucketLimiter_IsPerKey(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter(newFakeClock(time.Unix(0, 0)), Config{Rate: 1, Burst: 1})

	require.True(t, l.Allow("admin:a"))
	require.False(t, l.Allow("admin:a"))
	require.True(t, l.Allow("admin:b"))
}

func TestTokenBucketLimiter_DropsIdleBuckets(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Rate: 10, Burst: 1, TTL: 2 * time.Second})

	l.Allow("A")
	l.Allow("B")
	require.Equal(t, 2, l.Len())

	clk.Add(59 * time.Second)
	l.Allow("B")
	clk.Add(2 * time.Second)
	l.Allow("B")

	require.Equal(t, 1, l.Len())
	_, ok := l.buckets["B"]
	require.True(t, ok)
}

func TestTokenBucketLimiter_FullTableEvictsIdleFirst(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Rate: 1, Burst: 1, TTL: time.Second, MaxBuckets: 2})

	require.True(t, l.Allow("A"))
	require.True(t, l.Allow("B"))
	require.False(t, l.Allow("C"), "table full, nothing idle yet")

	clk.Add(2 * time.Second)
	require.True(t, l.Allow("C"))
	require.Equal(t, 1, l.Len())
}

func TestTokenBucketLimiter_Defaults(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter(nil, Config{MaxBuckets: -1})
	require.Equal(t, float64(1), l.cfg.Rate)
	require.Equal(t, 1, l.cfg.Burst)
	require.Zero(t, l.cfg.MaxBuckets)
	require.True(t, l.Allow("x"))
}
