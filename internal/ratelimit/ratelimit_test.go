package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryAllowsBurstThenThrottles(t *testing.T) {
	m := NewMemory(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "u-1")
		assert.NoError(t, err)
		assert.True(t, ok, "call %d", i)
	}
	ok, _ := m.Allow(ctx, "u-1")
	assert.False(t, ok)

	// other users have their own bucket
	ok, _ = m.Allow(ctx, "u-2")
	assert.True(t, ok)

	// one token refills every window/limit
	now = now.Add(20 * time.Second)
	ok, _ = m.Allow(ctx, "u-1")
	assert.True(t, ok)
}

func TestMemoryEvictsIdleBuckets(t *testing.T) {
	m := NewMemory(1, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, _ = m.Allow(context.Background(), "a")
	_, _ = m.Allow(context.Background(), "b")
	assert.Equal(t, 2, m.Len())

	now = now.Add(5 * time.Second)
	_, _ = m.Allow(context.Background(), "c")
	assert.Equal(t, 1, m.Len())
}
