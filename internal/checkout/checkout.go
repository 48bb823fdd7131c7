// Package checkout turns a user's cart into a stock decrement plus a new
// order, atomically.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

// Pricer supplies the shipping fee and discount configuration in force.
type Pricer interface {
	CurrentFee(ctx context.Context) (int64, error)
	Discount(ctx context.Context) (pricing.DiscountConfig, error)
}

type Request struct {
	UserID          string
	IdempotencyKey  string
	ShippingAddress string
	PaymentMethod   string
}

type Result struct {
	Order      orders.Order
	Idempotent bool
}

const defaultTimeout = 15 * time.Second

type Coordinator struct {
	Store   orders.Store
	Pricing Pricer
	Events  orders.Notifier
	Log     *zap.Logger
	Now     func() time.Time
	// Timeout bounds the store work. The caller's cancellation does not
	// interrupt a checkout once it has started.
	Timeout time.Duration
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) log() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

// Checkout decrements stock for every cart line, prices the order, creates
// it in AwaitingConfirmation and clears the cart. Either all of it commits
// or none of it does. A repeated IdempotencyKey returns the earlier order.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (Result, error) {
	if req.UserID == "" {
		return Result{}, orders.ErrForbidden
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	fee, err := c.Pricing.CurrentFee(ctx)
	if err != nil {
		return Result{}, c.fail(req, fmt.Errorf("shipping fee: %w", err))
	}
	discount, err := c.Pricing.Discount(ctx)
	if err != nil {
		return Result{}, c.fail(req, fmt.Errorf("discount config: %w", err))
	}

	var res Result
	err = c.Store.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if req.IdempotencyKey != "" {
			o, found, err := tx.OrderByCheckoutKey(ctx, req.UserID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				res = Result{Order: o, Idempotent: true}
				return nil
			}
		}

		lines, err := tx.CartLines(ctx, req.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			// a concurrent attempt with the same key may have emptied the
			// cart while we waited on its row locks
			if req.IdempotencyKey != "" {
				o, found, err := tx.OrderByCheckoutKey(ctx, req.UserID, req.IdempotencyKey)
				if err != nil {
					return err
				}
				if found {
					res = Result{Order: o, Idempotent: true}
					return nil
				}
			}
			return orders.ErrEmptyCart
		}
		// fixed lock order across concurrent checkouts
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		items := make([]orders.Item, 0, len(lines))
		productIDs := make([]string, 0, len(lines))
		var subtotal int64
		for _, l := range lines {
			if l.Qty <= 0 {
				return fmt.Errorf("cart line %s has quantity %d", l.ProductID, l.Qty)
			}
			ok, err := tx.TryDecrement(ctx, l.ProductID, l.Qty)
			if err != nil {
				return err
			}
			if !ok {
				return &orders.InsufficientStockError{ProductID: l.ProductID, ProductName: l.Name, Requested: l.Qty}
			}
			items = append(items, orders.Item{ProductID: l.ProductID, Name: l.Name, Qty: l.Qty, PriceCents: l.PriceCents})
			productIDs = append(productIDs, l.ProductID)
			subtotal += l.PriceCents * int64(l.Qty)
		}

		totals := pricing.ComputeTotals(subtotal, fee, discount)
		now := c.now()
		o := orders.Order{
			ID:               uuid.NewString(),
			UserID:           req.UserID,
			CheckoutKey:      req.IdempotencyKey,
			Items:            items,
			SubtotalCents:    totals.SubtotalCents,
			ShippingFeeCents: totals.ShippingFeeCents,
			DiscountCents:    totals.DiscountCents,
			TotalCents:       totals.TotalCents,
			Status:           orders.StatusAwaitingConfirmation,
			History: []orders.StatusEntry{
				{Status: orders.StatusAwaitingConfirmation, At: now, Actor: req.UserID},
			},
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, req.UserID); err != nil {
			return err
		}
		if err := tx.ReleaseHolds(ctx, req.UserID, productIDs); err != nil {
			return err
		}
		res = Result{Order: o}
		return nil
	})
	if err != nil {
		return Result{}, c.fail(req, err)
	}

	if !res.Idempotent {
		c.log().Info("checkout completed",
			zap.String("order_id", res.Order.ID),
			zap.String("user_id", req.UserID),
			zap.Int64("total", res.Order.TotalCents),
			zap.Int("items", len(res.Order.Items)),
		)
		if c.Events != nil {
			c.Events.OrderCreated(ctx, res.Order)
		}
	}
	return res, nil
}

func (c *Coordinator) fail(req Request, err error) error {
	fields := []zap.Field{zap.String("user_id", req.UserID), zap.Error(err)}
	switch {
	case errors.Is(err, orders.ErrStoreUnavailable):
		c.log().Error("checkout aborted, store unavailable", fields...)
	case orders.IsBusiness(err):
		c.log().Debug("checkout rejected", fields...)
	default:
		c.log().Warn("checkout failed", fields...)
	}
	return err
}
