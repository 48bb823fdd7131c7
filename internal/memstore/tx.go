package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

// tx runs with Store.mu held. Every mutation pushes its inverse onto undo.
type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) TryDecrement(_ context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	p, ok := t.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	prev, prevAt := p.Stock, p.UpdatedAt
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	t.undo = append(t.undo, func() { p.Stock, p.UpdatedAt = prev, prevAt })
	return true, nil
}

func (t *tx) Increment(_ context.Context, productID string, qty int) error {
	p, ok := t.s.products[productID]
	if !ok {
		// restoring a product that has since been removed is a no-op
		return nil
	}
	prev, prevAt := p.Stock, p.UpdatedAt
	p.Stock += qty
	if p.Stock < 0 {
		p.Stock = 0
	}
	p.UpdatedAt = time.Now().UTC()
	t.undo = append(t.undo, func() { p.Stock, p.UpdatedAt = prev, prevAt })
	return nil
}

func (t *tx) CartLines(_ context.Context, userID string) ([]orders.CartLine, error) {
	lines := t.s.carts[userID]
	out := make([]orders.CartLine, 0, len(lines))
	for pid, qty := range lines {
		l := orders.CartLine{ProductID: pid, Qty: qty}
		// a line whose product is gone stays in; TryDecrement rejects it
		if p, ok := t.s.products[pid]; ok {
			l.Name, l.PriceCents = p.Name, p.PriceCents
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (t *tx) ClearCart(_ context.Context, userID string) error {
	lines, ok := t.s.carts[userID]
	if !ok || len(lines) == 0 {
		return nil
	}
	saved := make(map[string]int, len(lines))
	for k, v := range lines {
		saved[k] = v
	}
	clear(lines)
	t.undo = append(t.undo, func() {
		for k, v := range saved {
			lines[k] = v
		}
	})
	return nil
}

func (t *tx) ReleaseHolds(_ context.Context, userID string, productIDs []string) error {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	for id, r := range t.s.reservations {
		id, r := id, r // per-iteration copies for the undo closure (pre-Go 1.22 loop semantics)
		if r.UserID == userID && want[r.ProductID] {
			delete(t.s.reservations, id)
			t.undo = append(t.undo, func() { t.s.reservations[id] = r })
		}
	}
	return nil
}

func (t *tx) OrderByCheckoutKey(_ context.Context, userID, key string) (orders.Order, bool, error) {
	id, ok := t.s.checkoutKeys[checkoutKey(userID, key)]
	if !ok {
		return orders.Order{}, false, nil
	}
	return t.s.orders[id].Clone(), true, nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, exists := t.s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if o.CheckoutKey != "" {
		k := checkoutKey(o.UserID, o.CheckoutKey)
		if _, exists := t.s.checkoutKeys[k]; exists {
			return fmt.Errorf("%w: %q", orders.ErrDuplicateCheckout, o.CheckoutKey)
		}
		t.s.checkoutKeys[k] = o.ID
		t.undo = append(t.undo, func() { delete(t.s.checkoutKeys, k) })
	}
	stored := o.Clone()
	t.s.orders[o.ID] = &stored
	t.undo = append(t.undo, func() { delete(t.s.orders, o.ID) })
	return nil
}

func (t *tx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	return o.Clone(), nil
}

func (t *tx) UpdateStatus(_ context.Context, id string, from orders.Status, entry orders.StatusEntry) (bool, error) {
	o, ok := t.s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	prevStatus, prevLen, prevAt := o.Status, len(o.History), o.UpdatedAt
	o.Status = entry.Status
	o.History = append(o.History, entry)
	o.UpdatedAt = entry.At
	t.undo = append(t.undo, func() {
		o.Status = prevStatus
		o.History = o.History[:prevLen]
		o.UpdatedAt = prevAt
	})
	return true, nil
}
