package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

type pgTx struct{ q querier }

func (t *pgTx) TryDecrement(ctx context.Context, productID string, qty int) (bool, error) {
	return tryDecrement(ctx, t.q, productID, qty)
}

func (t *pgTx) Increment(ctx context.Context, productID string, qty int) error {
	return increment(ctx, t.q, productID, qty)
}

func (t *pgTx) CartLines(ctx context.Context, userID string) ([]orders.CartLine, error) {
	// locking the cart rows serializes two checkouts of the same cart
	rows, err := t.q.Query(ctx, `
		SELECT ci.product_id, p.name, ci.qty, p.price_cents
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF ci`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	defer rows.Close()

	var out []orders.CartLine
	for rows.Next() {
		var l orders.CartLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Qty, &l.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) error {
	return clearCart(ctx, t.q, userID)
}

func (t *pgTx) ReleaseHolds(ctx context.Context, userID string, productIDs []string) error {
	return releaseHolds(ctx, t.q, userID, productIDs)
}

func (t *pgTx) OrderByCheckoutKey(ctx context.Context, userID, key string) (orders.Order, bool, error) {
	var id string
	err := t.q.QueryRow(ctx, `SELECT id FROM orders WHERE user_id = $1 AND checkout_key = $2`, userID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, fmt.Errorf("order by checkout key: %w", err)
	}
	o, err := loadOrder(ctx, t.q, id, false)
	if err != nil {
		return orders.Order{}, false, err
	}
	return o, true, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, user_id, checkout_key, subtotal_cents, shipping_fee_cents,
			discount_cents, total_cents, status, shipping_address, payment_method, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.UserID, o.CheckoutKey, o.SubtotalCents, o.ShippingFeeCents,
		o.DiscountCents, o.TotalCents, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", orders.ErrDuplicateCheckout, o.CheckoutKey)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	b := &pgx.Batch{}
	for i, it := range o.Items {
		b.Queue(`INSERT INTO order_items(order_id, line_no, product_id, name, qty, price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`, o.ID, i, it.ProductID, it.Name, it.Qty, it.PriceCents)
	}
	for _, h := range o.History {
		queueHistory(b, o.ID, h)
	}
	return sendBatch(ctx, t.q, b, "insert order lines")
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return loadOrder(ctx, t.q, id, true)
}

func (t *pgTx) UpdateStatus(ctx context.Context, id string, from orders.Status, entry orders.StatusEntry) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`, id, string(from), string(entry.Status), entry.At)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	b := &pgx.Batch{}
	queueHistory(b, id, entry)
	if err := sendBatch(ctx, t.q, b, "append history"); err != nil {
		return false, err
	}
	return true, nil
}

func queueHistory(b *pgx.Batch, orderID string, h orders.StatusEntry) {
	b.Queue(`INSERT INTO order_status_history(order_id, status, at, note, actor)
		VALUES ($1, $2, $3, $4, $5)`, orderID, string(h.Status), h.At, h.Note, h.Actor)
}

// batcher is satisfied by pgx.Tx and *pgxpool.Pool.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, q querier, b *pgx.Batch, op string) error {
	if b.Len() == 0 {
		return nil
	}
	bq, ok := q.(batcher)
	if !ok {
		return fmt.Errorf("%s: querier cannot batch", op)
	}
	if err := bq.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
