package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

const orderColumns = `id, user_id, COALESCE(checkout_key, ''), subtotal_cents, shipping_fee_cents,
	discount_cents, total_cents, status, shipping_address, payment_method,
	COALESCE(agent_id, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CheckoutKey, &o.SubtotalCents, &o.ShippingFeeCents,
		&o.DiscountCents, &o.TotalCents, &status, &o.ShippingAddress, &o.PaymentMethod,
		&o.AgentID, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

// loadOrder reads one order with its lines and history. lock holds the order
// row until the surrounding transaction ends.
func loadOrder(ctx context.Context, q querier, id string, lock bool) (orders.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("load order: %w", err)
	}
	list := []orders.Order{o}
	if err := attachLines(ctx, q, list); err != nil {
		return orders.Order{}, err
	}
	return list[0], nil
}

// attachLines fills Items and History for every order in list.
func attachLines(ctx context.Context, q querier, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	byID := make(map[string]*orders.Order, len(list))
	for i := range list {
		ids[i] = list[i].ID
		byID[list[i].ID] = &list[i]
		list[i].Items = []orders.Item{}
		list[i].History = []orders.StatusEntry{}
	}

	rows, err := q.Query(ctx, `
		SELECT order_id, product_id, name, qty, price_cents
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("order items: %w", err)
	}
	for rows.Next() {
		var (
			orderID string
			it      orders.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Qty, &it.PriceCents); err != nil {
			rows.Close()
			return err
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
		SELECT order_id, status, at, note, actor
		FROM order_status_history WHERE order_id = ANY($1)
		ORDER BY order_id, id`, ids)
	if err != nil {
		return fmt.Errorf("order history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID, status string
			h               orders.StatusEntry
		)
		if err := rows.Scan(&orderID, &status, &h.At, &h.Note, &h.Actor); err != nil {
			return err
		}
		h.Status = orders.Status(status)
		byID[orderID].History = append(byID[orderID].History, h)
	}
	return rows.Err()
}

func (s *Store) Order(ctx context.Context, id string) (orders.Order, error) {
	o, err := loadOrder(ctx, s.DB, id, false)
	return o, classify("order", err)
}

func (s *Store) OrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, classify("orders by user", err)
	}
	list := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, classify("scan order", err)
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("orders by user", err)
	}
	if err := attachLines(ctx, s.DB, list); err != nil {
		return nil, classify("orders by user", err)
	}
	return list, nil
}

func (s *Store) AssignAgent(ctx context.Context, orderID, agentID string, at time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE orders SET agent_id = $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND agent_id IS NULL`,
		orderID, agentID, at, string(orders.StatusConfirmed))
	if err != nil {
		return false, classify("assign agent", err)
	}
	return tag.RowsAffected() == 1, nil
}
