package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultReservationTTL = 15 * time.Minute

// Service exposes reservations, advisory availability and admin stock
// adjustment. Availability is for display only; checkout gates on
// Ledger.TryDecrement.
type Service struct {
	Repo    ReservationRepo
	Catalog Catalog
	Ledger  Ledger
	TTL     time.Duration
	Now     func() time.Time
	Log     *zap.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// Reserve places a hold of qty on productID for userID. ttl <= 0 uses the
// service default.
func (s *Service) Reserve(ctx context.Context, userID, productID string, qty int, ttl time.Duration) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}
	if ttl <= 0 {
		ttl = s.TTL
	}
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}

	// availability is read before the insert, so concurrent holds can
	// overshoot stock; holds are advisory and checkout still gates on the ledger
	av, err := s.Available(ctx, productID)
	if err != nil {
		return Reservation{}, err
	}
	if av.Available < qty {
		return Reservation{}, fmt.Errorf("%w: product %s has %d", ErrUnavailable, productID, av.Available)
	}

	now := s.now()
	r := Reservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Qty:       qty,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.Repo.InsertReservation(ctx, r); err != nil {
		return Reservation{}, err
	}
	return r, nil
}

// Release drops userID's holds on productIDs.
func (s *Service) Release(ctx context.Context, userID string, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	return s.Repo.ReleaseReservations(ctx, userID, productIDs)
}

func (s *Service) ReservedQuantity(ctx context.Context, productID string) (int, error) {
	return s.Repo.ReservedQuantity(ctx, productID, s.now())
}

// Available is stock minus active holds, floored at 0.
func (s *Service) Available(ctx context.Context, productID string) (Availability, error) {
	p, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	reserved, err := s.ReservedQuantity(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	avail := p.Stock - reserved
	if avail < 0 {
		avail = 0
	}
	return Availability{ProductID: p.ID, Stock: p.Stock, Reserved: reserved, Available: avail}, nil
}

// ReleaseExpired deletes holds whose expiry has passed. Reads already ignore
// them, so this only reclaims storage.
func (s *Service) ReleaseExpired(ctx context.Context) (int64, error) {
	n, err := s.Repo.DeleteExpiredReservations(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log().Debug("expired reservations released", zap.Int64("count", n))
	}
	return n, nil
}

// Adjust applies an admin stock correction through the ledger.
func (s *Service) Adjust(ctx context.Context, productID string, delta int) (Product, error) {
	if _, err := s.Catalog.Product(ctx, productID); err != nil {
		return Product{}, err
	}
	if err := s.Ledger.Increment(ctx, productID, delta); err != nil {
		return Product{}, err
	}
	return s.Catalog.Product(ctx, productID)
}
