package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/ratelimit"
)

// Limiter is a fixed-window counter shared by every API instance.
type Limiter struct {
	rdb    redis.Cmdable
	scope  string
	limit  int64
	window time.Duration
	now    func() time.Time
}

var _ ratelimit.Limiter = (*Limiter)(nil)

func NewLimiter(rdb redis.Cmdable, scope string, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window < time.Second {
		window = time.Second
	}
	return &Limiter{rdb: rdb, scope: scope, limit: int64(limit), window: window, now: time.Now}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().Unix() / int64(l.window/time.Second)
	k := fmt.Sprintf(KeyThrottle, l.scope, key, bucket)

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("throttle expire: %w", err)
		}
	}
	return n <= l.limit, nil
}
