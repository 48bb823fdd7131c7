package pricing

import "time"

type ShippingConfig struct {
	FeeCents  int64     `json:"fee"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

func (c ShippingConfig) Validate() error {
	if c.FeeCents < 0 {
		return &ValidationError{Field: "fee", Reason: "must not be negative"}
	}
	return nil
}

type Totals struct {
	SubtotalCents    int64 `json:"subtotal"`
	ShippingFeeCents int64 `json:"shipping_fee"`
	DiscountCents    int64 `json:"discount"`
	TotalCents       int64 `json:"total"`
}

// ComputeTotals keeps total == subtotal + shipping - discount and total >= 0:
// the discount is capped at the subtotal and a negative fee counts as 0.
func ComputeTotals(subtotal, fee int64, cfg DiscountConfig) Totals {
	if subtotal < 0 {
		subtotal = 0
	}
	if fee < 0 {
		fee = 0
	}
	d := ComputeDiscount(subtotal, cfg)
	return Totals{
		SubtotalCents:    subtotal,
		ShippingFeeCents: fee,
		DiscountCents:    d,
		TotalCents:       subtotal + fee - d,
	}
}
