// Package memstore is an in-process backend for every storage port. It
// serves dev mode (STORE_BACKEND=memory) and tests. A transaction holds the
// store lock for its whole duration and records an undo log that is replayed
// if the transaction fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

type Store struct {
	mu           sync.Mutex
	products     map[string]*inventory.Product
	carts        map[string]map[string]int
	reservations map[string]inventory.Reservation
	orders       map[string]*orders.Order
	checkoutKeys map[string]string
	discount     *pricing.DiscountConfig
	shipping     *pricing.ShippingConfig
}

var (
	_ orders.Store              = (*Store)(nil)
	_ inventory.Ledger          = (*Store)(nil)
	_ inventory.Catalog         = (*Store)(nil)
	_ inventory.CatalogAdmin    = (*Store)(nil)
	_ inventory.ReservationRepo = (*Store)(nil)
	_ cart.Store                = (*Store)(nil)
	_ pricing.ConfigStore       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		products:     make(map[string]*inventory.Product),
		carts:        make(map[string]map[string]int),
		reservations: make(map[string]inventory.Reservation),
		orders:       make(map[string]*orders.Order),
		checkoutKeys: make(map[string]string),
	}
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(p inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.products[p.ID] = &p
}

func (s *Store) SaveProduct(_ context.Context, p inventory.Product) error {
	s.PutProduct(p)
	return nil
}

func (s *Store) ListProducts(context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Product(_ context.Context, id string) (inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("%w: %s", inventory.ErrProductNotFound, id)
	}
	return *p, nil
}

// ---- ledger (outside any transaction) ----

func (s *Store) TryDecrement(ctx context.Context, productID string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{s: s}).TryDecrement(ctx, productID, qty)
}

func (s *Store) Increment(ctx context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{s: s}).Increment(ctx, productID, qty)
}

// ---- orders ----

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, t orders.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()
	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) Order(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *Store) OrdersByUser(_ context.Context, userID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AssignAgent(_ context.Context, orderID, agentID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != orders.StatusConfirmed || o.AgentID != "" {
		return false, nil
	}
	o.AgentID = agentID
	o.UpdatedAt = at
	return true, nil
}

// ---- cart ----

func (s *Store) CartItems(_ context.Context, userID string) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[userID]
	out := make([]cart.Item, 0, len(lines))
	for pid, qty := range lines {
		out = append(out, cart.Item{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Store) SetCartItem(_ context.Context, userID, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.carts[userID]
	if !ok {
		lines = make(map[string]int)
		s.carts[userID] = lines
	}
	if qty <= 0 {
		delete(lines, productID)
		return nil
	}
	lines[productID] = qty
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lines, ok := s.carts[userID]; ok {
		clear(lines)
	}
	return nil
}

// ---- reservations ----

func (s *Store) InsertReservation(_ context.Context, r inventory.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	return nil
}

func (s *Store) ReservedQuantity(_ context.Context, productID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, r := range s.reservations {
		if r.ProductID == productID && r.Active(now) {
			total += r.Qty
		}
	}
	return total, nil
}

func (s *Store) DeleteExpiredReservations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.reservations {
		if !r.Active(now) {
			delete(s.reservations, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ReleaseReservations(_ context.Context, userID string, productIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	for id, r := range s.reservations {
		if r.UserID == userID && want[r.ProductID] {
			delete(s.reservations, id)
		}
	}
	return nil
}

// ReservationCount reports stored rows, expired ones included.
func (s *Store) ReservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// ---- configuration ----

func (s *Store) DiscountConfig(context.Context) (pricing.DiscountConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discount == nil {
		return pricing.DiscountConfig{}, false, nil
	}
	c := *s.discount
	c.Tiers = append([]pricing.Tier(nil), c.Tiers...)
	return c, true, nil
}

func (s *Store) SaveDiscountConfig(_ context.Context, c pricing.DiscountConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Tiers = append([]pricing.Tier(nil), c.Tiers...)
	s.discount = &c
	return nil
}

func (s *Store) ShippingConfig(context.Context) (pricing.ShippingConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shipping == nil {
		return pricing.ShippingConfig{}, false, nil
	}
	return *s.shipping, true, nil
}

func (s *Store) SaveShippingConfig(_ context.Context, c pricing.ShippingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipping = &c
	return nil
}

func checkoutKey(userID, key string) string { return userID + "\x00" + key }
