package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

// Both configuration tables hold a single row with id 1.

func (s *Store) DiscountConfig(ctx context.Context) (pricing.DiscountConfig, bool, error) {
	var (
		c   pricing.DiscountConfig
		raw []byte
	)
	err := s.DB.QueryRow(ctx, `
		SELECT tiers, is_active, updated_at, updated_by FROM discount_config WHERE id = 1`).
		Scan(&raw, &c.Active, &c.UpdatedAt, &c.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.DiscountConfig{}, false, nil
	}
	if err != nil {
		return pricing.DiscountConfig{}, false, classify("discount config", err)
	}
	if err := json.Unmarshal(raw, &c.Tiers); err != nil {
		return pricing.DiscountConfig{}, false, fmt.Errorf("decode discount tiers: %w", err)
	}
	return c, true, nil
}

func (s *Store) SaveDiscountConfig(ctx context.Context, c pricing.DiscountConfig) error {
	tiers := c.Tiers
	if tiers == nil {
		tiers = []pricing.Tier{}
	}
	raw, err := json.Marshal(tiers)
	if err != nil {
		return fmt.Errorf("encode discount tiers: %w", err)
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO discount_config(id, tiers, is_active, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET tiers = EXCLUDED.tiers, is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
		raw, c.Active, c.UpdatedAt, c.UpdatedBy)
	return classify("save discount config", err)
}

func (s *Store) ShippingConfig(ctx context.Context) (pricing.ShippingConfig, bool, error) {
	var c pricing.ShippingConfig
	err := s.DB.QueryRow(ctx, `
		SELECT fee_cents, updated_at, updated_by FROM shipping_config WHERE id = 1`).
		Scan(&c.FeeCents, &c.UpdatedAt, &c.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.ShippingConfig{}, false, nil
	}
	if err != nil {
		return pricing.ShippingConfig{}, false, classify("shipping config", err)
	}
	return c, true, nil
}

func (s *Store) SaveShippingConfig(ctx context.Context, c pricing.ShippingConfig) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO shipping_config(id, fee_cents, updated_at, updated_by)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET fee_cents = EXCLUDED.fee_cents, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
		c.FeeCents, c.UpdatedAt, c.UpdatedBy)
	return classify("save shipping config", err)
}
