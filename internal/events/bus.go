// Package events publishes committed order changes. Publishing happens after
// the database commit; a failed publish is logged and never undoes the change.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/kafka"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

const envelopeVersion = 1

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// Bus wraps each change in an orders.Envelope and routes it to its topic,
// keyed by order id.
type Bus struct {
	Pub      Publisher
	Producer string
	Log      *zap.Logger
	Now      func() time.Time
}

var _ orders.Notifier = (*Bus)(nil)

func (b *Bus) OrderCreated(ctx context.Context, o orders.Order) {
	b.emit(ctx, orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      o.Items,
		TotalCents: o.TotalCents,
	})
}

func (b *Bus) StatusChanged(ctx context.Context, o orders.Order, from orders.Status) {
	p := orders.OrderStatusChangedPayload{OrderID: o.ID, From: from, To: o.Status}
	if n := len(o.History); n > 0 {
		p.Actor = o.History[n-1].Actor
		p.Note = o.History[n-1].Note
	}
	b.emit(ctx, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, o.ID, p)
}

func (b *Bus) Assigned(ctx context.Context, o orders.Order) {
	b.emit(ctx, orders.TopicOrderAssigned, orders.EventOrderAssigned, o.ID, orders.OrderAssignedPayload{
		OrderID: o.ID,
		AgentID: o.AgentID,
	})
}

func (b *Bus) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("encode event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	now := time.Now().UTC()
	if b.Now != nil {
		now = b.Now()
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    now,
		Producer:      b.Producer,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       raw,
	}
	value, err := kafkax.Marshal(env)
	if err != nil {
		log.Error("encode envelope", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	// the request may already be finished; the event still goes out
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err = b.Pub.Publish(pctx, topic, orders.PartitionKey(orderID), value,
		kafka.Header{Key: "event_type", Value: []byte(eventType)},
		kafka.Header{Key: "event_id", Value: []byte(env.EventID)},
	)
	if err != nil {
		log.Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}
