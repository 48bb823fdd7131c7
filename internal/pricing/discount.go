// Package pricing computes order totals: tiered discounts and the flat
// shipping fee, plus the validated configuration behind both.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError rejects a configuration write before it is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidConfig }

type Tier struct {
	MinSubtotalCents int64   `json:"min_subtotal"`
	Percentage       float64 `json:"discount_percentage"`
}

type DiscountConfig struct {
	Tiers     []Tier    `json:"tiers"`
	Active    bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// Validate requires non-negative, strictly ascending thresholds and
// percentages within [0, 100].
func (c DiscountConfig) Validate() error {
	for i, t := range c.Tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		if t.MinSubtotalCents < 0 {
			return &ValidationError{Field: field + ".min_subtotal", Reason: "must not be negative"}
		}
		if math.IsNaN(t.Percentage) || t.Percentage < 0 || t.Percentage > 100 {
			return &ValidationError{Field: field + ".discount_percentage", Reason: "must be within [0, 100]"}
		}
		if i > 0 && t.MinSubtotalCents <= c.Tiers[i-1].MinSubtotalCents {
			return &ValidationError{Field: field + ".min_subtotal", Reason: "thresholds must be strictly ascending"}
		}
	}
	return nil
}

// ComputeDiscount applies the tier with the largest threshold not above
// subtotal. The result never exceeds subtotal.
func ComputeDiscount(subtotal int64, cfg DiscountConfig) int64 {
	if !cfg.Active || subtotal <= 0 || len(cfg.Tiers) == 0 {
		return 0
	}
	i := sort.Search(len(cfg.Tiers), func(i int) bool {
		return cfg.Tiers[i].MinSubtotalCents > subtotal
	})
	if i == 0 {
		return 0
	}
	pct := cfg.Tiers[i-1].Percentage
	d := int64(math.Round(float64(subtotal) * pct / 100))
	switch {
	case d < 0:
		return 0
	case d > subtotal:
		return subtotal
	}
	return d
}
