package pricing

import (
	"context"
	"time"
)

const DefaultShippingFee = 30000

// ConfigStore persists the two singleton configurations. The bool result is
// false when nothing has been written yet.
type ConfigStore interface {
	DiscountConfig(ctx context.Context) (DiscountConfig, bool, error)
	SaveDiscountConfig(ctx context.Context, c DiscountConfig) error
	ShippingConfig(ctx context.Context) (ShippingConfig, bool, error)
	SaveShippingConfig(ctx context.Context, c ShippingConfig) error
}

// Service is the discount engine and shipping fee provider backed by a
// ConfigStore. Updates are last-writer-wins.
type Service struct {
	Store      ConfigStore
	DefaultFee int64
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) Shipping(ctx context.Context) (ShippingConfig, error) {
	c, ok, err := s.Store.ShippingConfig(ctx)
	if err != nil {
		return ShippingConfig{}, err
	}
	if !ok {
		return ShippingConfig{FeeCents: s.DefaultFee}, nil
	}
	return c, nil
}

func (s *Service) CurrentFee(ctx context.Context) (int64, error) {
	c, err := s.Shipping(ctx)
	return c.FeeCents, err
}

func (s *Service) SetFee(ctx context.Context, fee int64, actor string) (ShippingConfig, error) {
	c := ShippingConfig{FeeCents: fee, UpdatedAt: s.now(), UpdatedBy: actor}
	if err := c.Validate(); err != nil {
		return ShippingConfig{}, err
	}
	if err := s.Store.SaveShippingConfig(ctx, c); err != nil {
		return ShippingConfig{}, err
	}
	return c, nil
}

func (s *Service) Discount(ctx context.Context) (DiscountConfig, error) {
	c, _, err := s.Store.DiscountConfig(ctx)
	return c, err
}

// SetDiscount replaces the tier table. active == nil keeps the current switch.
func (s *Service) SetDiscount(ctx context.Context, tiers []Tier, active *bool, actor string) (DiscountConfig, error) {
	cur, err := s.Discount(ctx)
	if err != nil {
		return DiscountConfig{}, err
	}
	c := DiscountConfig{
		Tiers:     append([]Tier(nil), tiers...),
		Active:    cur.Active,
		UpdatedAt: s.now(),
		UpdatedBy: actor,
	}
	if active != nil {
		c.Active = *active
	}
	if err := c.Validate(); err != nil {
		return DiscountConfig{}, err
	}
	if err := s.Store.SaveDiscountConfig(ctx, c); err != nil {
		return DiscountConfig{}, err
	}
	return c, nil
}

// ToggleDiscount sets the switch, or flips it when active is nil.
func (s *Service) ToggleDiscount(ctx context.Context, active *bool, actor string) (DiscountConfig, error) {
	c, err := s.Discount(ctx)
	if err != nil {
		return DiscountConfig{}, err
	}
	if active != nil {
		c.Active = *active
	} else {
		c.Active = !c.Active
	}
	c.UpdatedAt = s.now()
	c.UpdatedBy = actor
	if err := s.Store.SaveDiscountConfig(ctx, c); err != nil {
		return DiscountConfig{}, err
	}
	return c, nil
}

// Quote prices a subtotal with the current configuration.
func (s *Service) Quote(ctx context.Context, subtotal int64) (Totals, error) {
	fee, err := s.CurrentFee(ctx)
	if err != nil {
		return Totals{}, err
	}
	d, err := s.Discount(ctx)
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(subtotal, fee, d), nil
}
