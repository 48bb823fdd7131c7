package inventory

import (
	"context"
	"errors"
	"time"
)

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Reservation is a soft hold. It never touches Product.Stock and stops
// counting as soon as ExpiresAt has passed.
type Reservation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Qty       int       `json:"qty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Reservation) Active(now time.Time) bool { return now.Before(r.ExpiresAt) }

type Availability struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrUnavailable     = errors.New("requested quantity is not available")
)

// Ledger is the only writer of Product.Stock. Each call must be a single
// conditional write in the backing store, never a read followed by a write.
type Ledger interface {
	// TryDecrement subtracts qty iff stock >= qty. It reports false, with no
	// side effect, when stock is short or the product does not exist.
	TryDecrement(ctx context.Context, productID string, qty int) (bool, error)
	// Increment adds qty (negative for admin corrections), flooring at 0.
	Increment(ctx context.Context, productID string, qty int) error
}

type Catalog interface {
	Product(ctx context.Context, id string) (Product, error)
}

// CatalogAdmin maintains catalog entries. Stock set here is an initial or
// corrective value; checkout never goes through it.
type CatalogAdmin interface {
	Catalog
	ListProducts(ctx context.Context) ([]Product, error)
	SaveProduct(ctx context.Context, p Product) error
}

type ReservationRepo interface {
	InsertReservation(ctx context.Context, r Reservation) error
	// ReservedQuantity sums holds on productID that are still active at now.
	ReservedQuantity(ctx context.Context, productID string, now time.Time) (int, error)
	DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error)
	// ReleaseReservations drops userID's holds on the given products.
	ReleaseReservations(ctx context.Context, userID string, productIDs []string) error
}
