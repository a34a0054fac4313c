package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyLimiterCountsDown(t *testing.T) {
	d := NewDailyLimiter(3)
	defer func() { _ = d.Close() }()
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		ok, remaining, err := d.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, remaining)
	}

	ok, remaining, err := d.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok, "fourth debate of the day must be denied")
	assert.Equal(t, 0, remaining)

	// Other keys are unaffected.
	ok, _, err = d.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDailyLimiterResetsAtUTCMidnight(t *testing.T) {
	d := NewDailyLimiter(1)
	defer func() { _ = d.Close() }()
	ctx := context.Background()

	current := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	ok, _, err := d.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, _ = d.Allow(ctx, "user-1")
	assert.False(t, ok)

	// Cross midnight.
	current = current.Add(20 * time.Minute)
	ok, remaining, err := d.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok, "allowance must reset on the next UTC day")
	assert.Equal(t, 0, remaining)
}

func TestDailyLimiterEvictsPreviousDays(t *testing.T) {
	d := NewDailyLimiter(5)
	defer func() { _ = d.Close() }()
	ctx := context.Background()

	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	_, _, _ = d.Allow(ctx, "user-1")
	_, _, _ = d.Allow(ctx, "user-2")

	current = current.Add(24 * time.Hour)
	d.evictStale()

	d.mu.Lock()
	n := len(d.windows)
	d.mu.Unlock()
	assert.Zero(t, n, "stale windows must be evicted")
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	ok, remaining, err := l.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Positive(t, remaining)
	assert.NoError(t, l.Close())
}
