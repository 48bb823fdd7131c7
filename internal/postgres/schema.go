package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
		stock       INTEGER NOT NULL CHECK (stock >= 0),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id    TEXT NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		qty        INTEGER NOT NULL CHECK (qty > 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		qty        INTEGER NOT NULL CHECK (qty > 0),
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_product_expiry ON reservations(product_id, expires_at)`,
	`CREATE INDEX IF NOT EXISTS reservations_user ON reservations(user_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		checkout_key       TEXT,
		subtotal_cents     BIGINT NOT NULL CHECK (subtotal_cents >= 0),
		shipping_fee_cents BIGINT NOT NULL CHECK (shipping_fee_cents >= 0),
		discount_cents     BIGINT NOT NULL CHECK (discount_cents >= 0),
		total_cents        BIGINT NOT NULL CHECK (total_cents >= 0),
		status             TEXT NOT NULL,
		shipping_address   TEXT NOT NULL DEFAULT '',
		payment_method     TEXT NOT NULL DEFAULT '',
		agent_id           TEXT,
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, checkout_key),
		CHECK (total_cents = subtotal_cents + shipping_fee_cents - discount_cents)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_created ON orders(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		line_no     INTEGER NOT NULL,
		product_id  TEXT NOT NULL,
		name        TEXT NOT NULL,
		qty         INTEGER NOT NULL CHECK (qty > 0),
		price_cents BIGINT NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		id       BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		status   TEXT NOT NULL,
		at       TIMESTAMPTZ NOT NULL,
		note     TEXT NOT NULL DEFAULT '',
		actor    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS order_status_history_order ON order_status_history(order_id, id)`,
	`CREATE TABLE IF NOT EXISTS discount_config (
		id         SMALLINT PRIMARY KEY CHECK (id = 1),
		tiers      JSONB NOT NULL,
		is_active  BOOLEAN NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		updated_by TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS shipping_config (
		id         SMALLINT PRIMARY KEY CHECK (id = 1),
		fee_cents  BIGINT NOT NULL CHECK (fee_cents >= 0),
		updated_at TIMESTAMPTZ NOT NULL,
		updated_by TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the schema if it does not exist. It is safe to run on
// every start.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
