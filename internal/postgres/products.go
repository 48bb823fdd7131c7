package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
)

func tryDecrement(ctx context.Context, q querier, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	tag, err := q.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("decrement %s: %w", productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func increment(ctx context.Context, q querier, productID string, qty int) error {
	_, err := q.Exec(ctx, `
		UPDATE products SET stock = GREATEST(stock + $2, 0), updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("increment %s: %w", productID, err)
	}
	return nil
}

func (s *Store) TryDecrement(ctx context.Context, productID string, qty int) (bool, error) {
	ok, err := tryDecrement(ctx, s.DB, productID, qty)
	return ok, classify("ledger", err)
}

func (s *Store) Increment(ctx context.Context, productID string, qty int) error {
	return classify("ledger", increment(ctx, s.DB, productID, qty))
}

func (s *Store) Product(ctx context.Context, id string) (inventory.Product, error) {
	var p inventory.Product
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, stock, updated_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Product{}, fmt.Errorf("%w: %s", inventory.ErrProductNotFound, id)
	}
	return p, classify("product", err)
}

// ListProducts returns the catalog ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, price_cents, stock, updated_at FROM products ORDER BY name, id`)
	if err != nil {
		return nil, classify("list products", err)
	}
	defer rows.Close()

	out := []inventory.Product{}
	for rows.Next() {
		var p inventory.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.UpdatedAt); err != nil {
			return nil, classify("scan product", err)
		}
		out = append(out, p)
	}
	return out, classify("list products", rows.Err())
}

// SaveProduct inserts or replaces a catalog entry.
func (s *Store) SaveProduct(ctx context.Context, p inventory.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(id, name, price_cents, stock, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price_cents = EXCLUDED.price_cents,
			stock = EXCLUDED.stock, updated_at = now()`,
		p.ID, p.Name, p.PriceCents, p.Stock)
	return classify("save product", err)
}
