package orders

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"
)

// Machine applies lifecycle transitions and delivery-agent assignment.
type Machine struct {
	Store  Store
	Events Notifier
	Log    *zap.Logger
	Now    func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *Machine) log() *zap.Logger {
	if m.Log != nil {
		return m.Log
	}
	return zap.NewNop()
}

func (m *Machine) events() Notifier {
	if m.Events != nil {
		return m.Events
	}
	return NopNotifier{}
}

// Apply moves the order to status to. The status write, the history append
// and, for cancellations, the stock restoration commit together; a repeated
// cancellation finds a terminal status and restores nothing.
func (m *Machine) Apply(ctx context.Context, orderID string, to Status, who auth.Identity, note string) (Order, error) {
	if !to.Valid() {
		return Order{}, ErrUnknownStatus
	}

	var (
		updated Order
		from    Status
	)
	err := m.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(from, to) {
			return &InvalidTransitionError{From: from, To: to}
		}
		if err := authorize(o, to, who); err != nil {
			return err
		}

		entry := StatusEntry{Status: to, At: m.now(), Note: note, Actor: who.UserID}
		ok, err := tx.UpdateStatus(ctx, o.ID, from, entry)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidTransitionError{From: from, To: to}
		}

		if to == StatusCancelled && restoresStock(from) {
			for _, it := range o.Items {
				if err := tx.Increment(ctx, it.ProductID, it.Qty); err != nil {
					return err
				}
			}
		}

		o.Status = to
		o.History = append(o.History, entry)
		o.UpdatedAt = entry.At
		updated = o
		return nil
	})
	if err != nil {
		m.report("status change", orderID, err, zap.String("to", string(to)), zap.String("actor", who.UserID))
		return Order{}, err
	}

	m.log().Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", who.UserID),
	)
	m.events().StatusChanged(ctx, updated, from)
	return updated, nil
}

// Assign lets a delivery agent claim a Confirmed, unassigned order. The
// claim is one conditional write; losing a race yields ErrAlreadyAssigned.
func (m *Machine) Assign(ctx context.Context, orderID string, who auth.Identity) (Order, error) {
	if who.Role != auth.RoleAgent {
		return Order{}, ErrForbidden
	}

	claimed, err := m.Store.AssignAgent(ctx, orderID, who.UserID, m.now())
	if err != nil {
		m.report("assignment", orderID, err)
		return Order{}, err
	}

	o, err := m.Store.Order(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !claimed {
		switch {
		case o.AgentID == who.UserID:
			return o, nil
		case o.AgentID != "":
			return Order{}, ErrAlreadyAssigned
		default:
			return Order{}, ErrNotAssignable
		}
	}

	m.log().Info("order assigned", zap.String("order_id", orderID), zap.String("agent", who.UserID))
	m.events().Assigned(ctx, o)
	return o, nil
}

// Get returns the order if who may see it; otherwise ErrNotFound.
func (m *Machine) Get(ctx context.Context, orderID string, who auth.Identity) (Order, error) {
	o, err := m.Store.Order(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanView(o, who) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// List returns userID's orders. Only privileged callers may name another
// user; an empty userID means the caller.
func (m *Machine) List(ctx context.Context, who auth.Identity, userID string) ([]Order, error) {
	if userID == "" {
		userID = who.UserID
	}
	if userID != who.UserID && !who.Privileged() {
		return nil, ErrForbidden
	}
	return m.Store.OrdersByUser(ctx, userID)
}

// report logs infrastructure failures as incidents; business rejections
// are normal control flow.
func (m *Machine) report(op, orderID string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("order_id", orderID), zap.Error(err))
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		m.log().Error(op+" failed", fields...)
	case IsBusiness(err):
		m.log().Debug(op+" rejected", fields...)
	default:
		m.log().Warn(op+" failed", fields...)
	}
}
