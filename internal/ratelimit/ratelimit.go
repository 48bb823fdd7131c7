// Package ratelimit throttles repeated actions per key, e.g. cart mutations
// per user.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more action for key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Memory is a per-key token bucket. Buckets idle for longer than the window
// are evicted lazily on the next call.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*entry
	rate    rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

// NewMemory allows limit actions per window for every key.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		buckets: make(map[string]*entry),
		rate:    rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)

	e, ok := m.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(m.rate, m.burst)}
		m.buckets[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1), nil
}

func (m *Memory) evict(now time.Time) {
	cutoff := now.Add(-m.window)
	for k, e := range m.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(m.buckets, k)
		}
	}
}

// Len returns the number of live buckets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Unlimited never throttles.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
