// Package cart keeps one mutable cart per user. Carts exist implicitly: a
// user with no rows has an empty cart.
package cart

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/ratelimit"
)

type Item struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

var (
	ErrThrottled       = errors.New("too many cart updates")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

type Store interface {
	CartItems(ctx context.Context, userID string) ([]Item, error)
	// SetCartItem upserts the line; qty 0 removes it.
	SetCartItem(ctx context.Context, userID, productID string, qty int) error
	ClearCart(ctx context.Context, userID string) error
}

type Reserver interface {
	Reserve(ctx context.Context, userID, productID string, qty int, ttl time.Duration) (inventory.Reservation, error)
	Release(ctx context.Context, userID string, productIDs ...string) error
}

type Service struct {
	Store   Store
	Catalog inventory.Catalog
	Limiter ratelimit.Limiter
	// Holds, when set, keeps a reservation matching each cart line: increases
	// add a hold, decreases and removals give it back.
	Holds   Reserver
	HoldTTL time.Duration
	Log     *zap.Logger
}

func (s *Service) Items(ctx context.Context, userID string) ([]Item, error) {
	items, err := s.Store.CartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// SetItem sets the quantity of productID in the user's cart and returns the
// updated cart.
func (s *Service) SetItem(ctx context.Context, userID, productID string, qty int) ([]Item, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}

	if qty > 0 {
		if _, err := s.Catalog.Product(ctx, productID); err != nil {
			return nil, err
		}
	}
	cur := 0
	if s.Holds != nil {
		var err error
		if cur, err = s.quantity(ctx, userID, productID); err != nil {
			return nil, err
		}
		if qty > cur {
			if _, err := s.Holds.Reserve(ctx, userID, productID, qty-cur, s.HoldTTL); err != nil {
				return nil, err
			}
		}
	}

	if err := s.Store.SetCartItem(ctx, userID, productID, qty); err != nil {
		return nil, err
	}
	if s.Holds != nil && qty < cur {
		s.shrinkHold(ctx, userID, productID, qty)
	}
	return s.Items(ctx, userID)
}

// shrinkHold replaces the user's holds on productID with one for qty.
// Holds are advisory, so failures are logged and the cart write stands.
func (s *Service) shrinkHold(ctx context.Context, userID, productID string, qty int) {
	if err := s.Holds.Release(ctx, userID, productID); err != nil {
		s.warn("release cart hold", userID, err)
		return
	}
	if qty == 0 {
		return
	}
	if _, err := s.Holds.Reserve(ctx, userID, productID, qty, s.HoldTTL); err != nil {
		s.warn("re-place cart hold", userID, err)
	}
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.allow(ctx, userID); err != nil {
		return err
	}
	var ids []string
	if s.Holds != nil {
		items, err := s.Store.CartItems(ctx, userID)
		if err != nil {
			return err
		}
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
	}
	if err := s.Store.ClearCart(ctx, userID); err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := s.Holds.Release(ctx, userID, ids...); err != nil {
			s.warn("release cart holds", userID, err)
		}
	}
	return nil
}

func (s *Service) warn(msg, userID string, err error) {
	if s.Log != nil {
		s.Log.Warn(msg, zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) allow(ctx context.Context, userID string) error {
	if s.Limiter == nil {
		return nil
	}
	ok, err := s.Limiter.Allow(ctx, userID)
	if err != nil {
		// fail open when the limiter backend is down
		s.warn("cart limiter unavailable", userID, err)
		return nil
	}
	if !ok {
		return ErrThrottled
	}
	return nil
}

func (s *Service) quantity(ctx context.Context, userID, productID string) (int, error) {
	items, err := s.Store.CartItems(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if it.ProductID == productID {
			return it.Qty, nil
		}
	}
	return 0, nil
}
