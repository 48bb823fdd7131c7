package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
)

func TestFailedTxRollsBack(t *testing.T) {
	s := New()
	s.PutProduct(inventory.Product{ID: "p1", Name: "Kibble", Stock: 5})
	ctx := context.Background()
	require.NoError(t, s.SetCartItem(ctx, "u-1", "p1", 2))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		ok, err := tx.TryDecrement(ctx, "p1", 2)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.InsertOrder(ctx, orders.Order{ID: "o-1", UserID: "u-1", CheckoutKey: "k"}))
		require.NoError(t, tx.ClearCart(ctx, "u-1"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	items, err := s.CartItems(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	_, err = s.Order(ctx, "o-1")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	assert.Empty(t, s.checkoutKeys)
}

func TestPanicInTxRollsBack(t *testing.T) {
	s := New()
	s.PutProduct(inventory.Product{ID: "p1", Stock: 1})
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			_, _ = tx.TryDecrement(ctx, "p1", 1)
			panic("handler bug")
		})
	})
	p, err := s.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
}

func TestDuplicateCheckoutKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert := func(id string) error {
		return s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			return tx.InsertOrder(ctx, orders.Order{ID: id, UserID: "u-1", CheckoutKey: "k"})
		})
	}
	require.NoError(t, insert("o-1"))
	assert.ErrorIs(t, insert("o-2"), orders.ErrDuplicateCheckout)
}

func TestCancelledContextSkipsTx(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, func(context.Context, orders.Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestListProductsSorted(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "b", Name: "Leash"}))
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: "a", Name: "Bowl"}))

	ps, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].ID)
	assert.False(t, ps[0].UpdatedAt.After(time.Now()))
}
