package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/auth"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/checkout"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/postgres"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

// openStore connects to PG_TEST_DSN and resets every table.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE order_status_history, order_items, orders, reservations,
		cart_items, products, discount_config, shipping_config`)
	require.NoError(t, err)
	return postgres.New(pool, zap.NewNop())
}

func stock(t *testing.T, s *postgres.Store, id string) int {
	t.Helper()
	p, err := s.Product(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestLedgerConditionalDecrement(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "p1", Name: "Kibble", PriceCents: 100, Stock: 3}))

	ok, err := s.TryDecrement(ctx, "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryDecrement(ctx, "p1", 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, stock(t, s, "p1"))

	ok, err = s.TryDecrement(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Increment(ctx, "p1", -10))
	assert.Equal(t, 0, stock(t, s, "p1"))

	_, err = s.Product(ctx, "missing")
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestCheckoutAndCancelRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "p1", Name: "Kibble", PriceCents: 1_000_000, Stock: 5}))
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "p2", Name: "Litter", PriceCents: 600_000, Stock: 5}))
	require.NoError(t, s.SetCartItem(ctx, "u-1", "p1", 2))
	require.NoError(t, s.SetCartItem(ctx, "u-1", "p2", 1))

	prices := &pricing.Service{Store: s, DefaultFee: pricing.DefaultShippingFee}
	active := true
	_, err := prices.SetDiscount(ctx, []pricing.Tier{{MinSubtotalCents: 1_000_000, Percentage: 5}}, &active, "admin")
	require.NoError(t, err)

	c := &checkout.Coordinator{Store: s, Pricing: prices}
	res, err := c.Checkout(ctx, checkout.Request{UserID: "u-1", IdempotencyKey: "k-1"})
	require.NoError(t, err)
	o := res.Order
	assert.Equal(t, int64(2_600_000), o.SubtotalCents)
	assert.Equal(t, int64(130_000), o.DiscountCents)
	assert.True(t, o.Balanced())
	assert.Equal(t, 3, stock(t, s, "p1"))

	again, err := c.Checkout(ctx, checkout.Request{UserID: "u-1", IdempotencyKey: "k-1"})
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, o.ID, again.Order.ID)
	assert.Len(t, again.Order.Items, 2)

	m := &orders.Machine{Store: s}
	staff := auth.Identity{UserID: "staff-1", Role: auth.RoleStaff}
	_, err = m.Apply(ctx, o.ID, orders.StatusConfirmed, staff, "")
	require.NoError(t, err)
	cancelled, err := m.Apply(ctx, o.ID, orders.StatusCancelled, staff, "out of area")
	require.NoError(t, err)
	assert.Len(t, cancelled.History, 3)
	assert.Equal(t, 5, stock(t, s, "p1"))
	assert.Equal(t, 5, stock(t, s, "p2"))

	_, err = m.Apply(ctx, o.ID, orders.StatusCancelled, staff, "")
	var ite *orders.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, 5, stock(t, s, "p1"))

	stored, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, stored.Status)
	assert.Equal(t, "out of area", stored.History[2].Note)
}

func TestConcurrentCheckoutNeverOversells(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "hot", Name: "Bed", PriceCents: 10, Stock: 5}))
	const buyers = 20
	for i := 0; i < buyers; i++ {
		require.NoError(t, s.SetCartItem(ctx, fmt.Sprintf("u-%d", i), "hot", 1))
	}

	c := &checkout.Coordinator{Store: s, Pricing: &pricing.Service{Store: s}}
	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		user := fmt.Sprintf("u-%d", i)
		g.Go(func() error {
			if _, err := c.Checkout(ctx, checkout.Request{UserID: user}); err == nil {
				ok.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, 0, stock(t, s, "hot"))
}

func TestAssignAgentSingleWriter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	o := orders.Order{
		ID: "o-1", UserID: "u-1", Status: orders.StatusConfirmed,
		Items:     []orders.Item{{ProductID: "p1", Name: "Kibble", Qty: 1, PriceCents: 10}},
		History:   []orders.StatusEntry{{Status: orders.StatusConfirmed, At: now}},
		CreatedAt: now, UpdatedAt: now,
		SubtotalCents: 10, TotalCents: 10,
	}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error { return tx.InsertOrder(ctx, o) }))

	won, err := s.AssignAgent(ctx, "o-1", "agent-a", now)
	require.NoError(t, err)
	assert.True(t, won)
	won, err = s.AssignAgent(ctx, "o-1", "agent-b", now)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.Order(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-a", got.AgentID)
}

func TestReservationsExpireOnRead(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "p1", Name: "Kibble", PriceCents: 1, Stock: 10}))
	require.NoError(t, s.InsertReservation(ctx, inventory.Reservation{ID: "r1", UserID: "u", ProductID: "p1", Qty: 2, ExpiresAt: now.Add(time.Minute), CreatedAt: now}))
	require.NoError(t, s.InsertReservation(ctx, inventory.Reservation{ID: "r2", UserID: "u", ProductID: "p1", Qty: 3, ExpiresAt: now.Add(-time.Minute), CreatedAt: now}))

	n, err := s.ReservedQuantity(ctx, "p1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted, err := s.DeleteExpiredReservations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestReleaseReservationsIsPerUser(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "p1", Name: "Kibble", PriceCents: 1, Stock: 10}))
	require.NoError(t, s.InsertReservation(ctx, inventory.Reservation{ID: "r1", UserID: "u-1", ProductID: "p1", Qty: 2, ExpiresAt: now.Add(time.Minute), CreatedAt: now}))
	require.NoError(t, s.InsertReservation(ctx, inventory.Reservation{ID: "r2", UserID: "u-2", ProductID: "p1", Qty: 3, ExpiresAt: now.Add(time.Minute), CreatedAt: now}))

	require.NoError(t, s.ReleaseReservations(ctx, "u-1", []string{"p1"}))
	n, err := s.ReservedQuantity(ctx, "p1", now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConfigSingletons(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.ShippingConfig(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	prices := &pricing.Service{Store: s, DefaultFee: pricing.DefaultShippingFee}
	fee, err := prices.CurrentFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(pricing.DefaultShippingFee), fee)

	_, err = prices.SetFee(ctx, 45_000, "admin")
	require.NoError(t, err)
	fee, err = prices.CurrentFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(45_000), fee)

	tiers := []pricing.Tier{{MinSubtotalCents: 0, Percentage: 0}, {MinSubtotalCents: 500, Percentage: 2.5}}
	_, err = prices.SetDiscount(ctx, tiers, nil, "admin")
	require.NoError(t, err)
	d, err := prices.Discount(ctx)
	require.NoError(t, err)
	assert.Equal(t, tiers, d.Tiers)
	assert.False(t, d.Active)
}
