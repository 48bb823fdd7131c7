package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/redisx"
)

// Fanout delivers every change to each notifier in turn.
type Fanout []orders.Notifier

func (f Fanout) OrderCreated(ctx context.Context, o orders.Order) {
	for _, n := range f {
		n.OrderCreated(ctx, o)
	}
}

func (f Fanout) StatusChanged(ctx context.Context, o orders.Order, from orders.Status) {
	for _, n := range f {
		n.StatusChanged(ctx, o, from)
	}
}

func (f Fanout) Assigned(ctx context.Context, o orders.Order) {
	for _, n := range f {
		n.Assigned(ctx, o)
	}
}

// StatusCache keeps the Redis order-status cache in step with committed
// changes. Writes never replace a newer cached status, and a failed write
// makes this process drop the entry on its next read. Another process may
// serve the old entry until TTLStatusCache runs out.
type StatusCache struct {
	Cache *redisx.Cache
	Log   *zap.Logger
}

func (s *StatusCache) OrderCreated(ctx context.Context, o orders.Order) { s.put(ctx, o) }

func (s *StatusCache) StatusChanged(ctx context.Context, o orders.Order, _ orders.Status) {
	s.put(ctx, o)
}

func (s *StatusCache) Assigned(ctx context.Context, o orders.Order) { s.put(ctx, o) }

func (s *StatusCache) put(ctx context.Context, o orders.Order) {
	err := s.Cache.SetStatus(context.WithoutCancel(ctx), redisx.OrderStatus{
		OrderID:   o.ID,
		UserID:    o.UserID,
		AgentID:   o.AgentID,
		Status:    string(o.Status),
		UpdatedAt: o.UpdatedAt,
	})
	if err != nil && s.Log != nil {
		s.Log.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}
