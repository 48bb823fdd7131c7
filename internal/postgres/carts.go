package postgres

import (
	"context"
	"fmt"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
)

func (s *Store) CartItems(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := s.DB.Query(ctx, `SELECT product_id, qty FROM cart_items WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, classify("cart items", err)
	}
	defer rows.Close()

	out := []cart.Item{}
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			return nil, classify("scan cart item", err)
		}
		out = append(out, it)
	}
	return out, classify("cart items", rows.Err())
}

func (s *Store) SetCartItem(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		_, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
		return classify("remove cart item", err)
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, qty, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, product_id) DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()`,
		userID, productID, qty)
	return classify("set cart item", err)
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	return classify("clear cart", clearCart(ctx, s.DB, userID))
}

func clearCart(ctx context.Context, q querier, userID string) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
