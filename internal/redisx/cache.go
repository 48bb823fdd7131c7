package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds the checkout idempotency fast path, the order-status cache and
// event dedup markers. A nil *Cache behaves as an always-empty cache.
type Cache struct {
	rdb *redis.Client

	mu sync.Mutex
	// order ids whose last status write failed; their entry may be stale
	stale map[string]struct{}
}

// NewCache returns nil when rdb is nil, so callers can pass an unset client.
func NewCache(rdb *redis.Client) *Cache {
	if rdb == nil {
		return nil
	}
	return &Cache{rdb: rdb, stale: make(map[string]struct{})}
}

func (c *Cache) CheckoutOrderID(ctx context.Context, userID, key string) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	id, err := c.rdb.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *Cache) RememberCheckout(ctx context.Context, userID, key, orderID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

type OrderStatus struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"assigned_agent,omitempty"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	// Version is UpdatedAt in microseconds; SetStatus fills it.
	Version int64 `json:"version"`
}

// setIfNotOlder writes ARGV[1] unless the stored entry carries a newer
// version than ARGV[2].
var setIfNotOlder = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, c = pcall(cjson.decode, cur)
  if ok and type(c) == 'table' and tonumber(c.version) and tonumber(c.version) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// SetStatus caches s unless a newer status for the order is already cached,
// so late or out-of-order writers cannot roll the entry back. A failed write
// marks the order so its possibly stale entry is dropped on the next read.
func (c *Cache) SetStatus(ctx context.Context, s OrderStatus) error {
	if c == nil {
		return nil
	}
	s.Version = s.UpdatedAt.UnixMicro()
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	err = setIfNotOlder.Run(ctx, c.rdb,
		[]string{fmt.Sprintf(KeyOrderStatus, s.OrderID)},
		string(b), s.Version, TTLStatusCache.Milliseconds()).Err()
	if err != nil {
		c.markStale(s.OrderID)
		return err
	}
	return nil
}

func (c *Cache) markStale(orderID string) {
	c.mu.Lock()
	c.stale[orderID] = struct{}{}
	c.mu.Unlock()
}

// dropIfStale deletes the entry of an order whose last write failed. It
// reports whether the entry may still be served.
func (c *Cache) dropIfStale(ctx context.Context, orderID string) bool {
	c.mu.Lock()
	_, stale := c.stale[orderID]
	c.mu.Unlock()
	if !stale {
		return true
	}
	if err := c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err(); err != nil {
		return false
	}
	c.mu.Lock()
	delete(c.stale, orderID)
	c.mu.Unlock()
	return false
}

// Status returns the cached status. An entry whose last write failed in this
// process is treated as a miss.
func (c *Cache) Status(ctx context.Context, orderID string) (OrderStatus, bool, error) {
	if c == nil {
		return OrderStatus{}, false, nil
	}
	if !c.dropIfStale(ctx, orderID) {
		return OrderStatus{}, false, nil
	}
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderStatus{}, false, nil
	}
	if err != nil {
		return OrderStatus{}, false, err
	}
	var s OrderStatus
	if err := json.Unmarshal(b, &s); err != nil {
		return OrderStatus{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return s, true, nil
}

// Claim marks id as being processed by service. It returns false if another
// delivery already claimed it.
func (c *Cache) Claim(ctx context.Context, service, id string) (bool, error) {
	if c == nil {
		return true, nil
	}
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), time.Now().UTC().Format(time.RFC3339), TTLDedup).Result()
}

// Release drops a claim so a redelivery can retry.
func (c *Cache) Release(ctx context.Context, service, id string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}
