package redisx

import "time"

const (
	// idem:checkout:{user_id}:{idempotency_key} -> order_id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// order_status:{order_id} -> {"status": "...", "user_id": "...", "updated_at": "...", "version": n}
	KeyOrderStatus = "order_status:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// throttle:{scope}:{key}:{window}
	KeyThrottle = "throttle:%s:%s:%d"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
