// Package payments turns payment-gateway confirmations into the Confirmed
// order transition.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"
	kafkax "github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/kafka"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

const (
	dedupScope = "payments"
	// Actor recorded in the status history for gateway confirmations.
	Actor = "payment-gateway"
)

type Transitioner interface {
	Apply(ctx context.Context, orderID string, to orders.Status, who auth.Identity, note string) (orders.Order, error)
}

// Claimer deduplicates deliveries by event id.
type Claimer interface {
	Claim(ctx context.Context, service, id string) (bool, error)
	Release(ctx context.Context, service, id string) error
}

type Handler struct {
	Orders Transitioner
	Dedup  Claimer
	Log    *zap.Logger
}

func (h *Handler) log() *zap.Logger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop()
}

// HandlePaymentConfirmed applies Confirmed for the paid order. Redeliveries,
// unknown orders and orders that already moved on are acknowledged without
// change; only infrastructure failures are returned for retry.
func (h *Handler) HandlePaymentConfirmed(ctx context.Context, m kafka.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		h.log().Error("undecodable payment event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentConfirmed {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.PaymentConfirmedPayload](env.Payload)
	if err != nil || p.OrderID == "" {
		h.log().Error("bad payment payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if env.EventID != "" && h.Dedup != nil {
		first, err := h.Dedup.Claim(ctx, dedupScope, env.EventID)
		if err != nil {
			return fmt.Errorf("claim %s: %w", env.EventID, err)
		}
		if !first {
			h.log().Debug("duplicate payment event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	system := auth.Identity{UserID: Actor, Role: auth.RoleSystem}
	note := "payment " + p.PaymentRef
	_, err = h.Orders.Apply(ctx, p.OrderID, orders.StatusConfirmed, system, note)

	var ite *orders.InvalidTransitionError
	switch {
	case err == nil:
		h.log().Info("order confirmed by payment",
			zap.String("order_id", p.OrderID),
			zap.String("payment_ref", p.PaymentRef),
		)
		return nil
	case errors.As(err, &ite):
		if ite.From != orders.StatusConfirmed {
			h.log().Warn("payment for order that cannot be confirmed",
				zap.String("order_id", p.OrderID),
				zap.String("status", string(ite.From)),
			)
		}
		return nil
	case errors.Is(err, orders.ErrNotFound):
		h.log().Warn("payment for unknown order", zap.String("order_id", p.OrderID))
		return nil
	}

	if env.EventID != "" && h.Dedup != nil {
		if rerr := h.Dedup.Release(context.WithoutCancel(ctx), dedupScope, env.EventID); rerr != nil {
			h.log().Error("release dedup claim", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
	}
	return fmt.Errorf("confirm order %s: %w", p.OrderID, err)
}
