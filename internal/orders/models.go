package orders

import "time"

type Item struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"` // captured at checkout
}

type StatusEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
	Actor  string    `json:"actor"`
}

// Order is immutable after checkout except for Status, History and AgentID.
type Order struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	CheckoutKey      string        `json:"checkout_key,omitempty"`
	Items            []Item        `json:"items"`
	SubtotalCents    int64         `json:"subtotal"`
	ShippingFeeCents int64         `json:"shipping_fee"`
	DiscountCents    int64         `json:"discount"`
	TotalCents       int64         `json:"total"`
	Status           Status        `json:"status"`
	History          []StatusEntry `json:"status_history"`
	ShippingAddress  string        `json:"shipping_address"`
	PaymentMethod    string        `json:"payment_method"`
	AgentID          string        `json:"assigned_agent,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Balanced checks total == subtotal + shipping - discount.
func (o Order) Balanced() bool {
	return o.TotalCents == o.SubtotalCents+o.ShippingFeeCents-o.DiscountCents
}

// Clone returns a copy that shares no slices with o.
func (o Order) Clone() Order {
	o.Items = append([]Item(nil), o.Items...)
	o.History = append([]StatusEntry(nil), o.History...)
	return o
}

// CartLine is a cart entry joined with the product's current name and price.
type CartLine struct {
	ProductID  string
	Name       string
	Qty        int
	PriceCents int64
}
