package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
)

func (s *Store) InsertReservation(ctx context.Context, r inventory.Reservation) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reservations(id, user_id, product_id, qty, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.ProductID, r.Qty, r.ExpiresAt, r.CreatedAt)
	return classify("insert reservation", err)
}

// ReservedQuantity counts only holds still active at now; expired rows that
// the sweeper has not removed yet are ignored.
func (s *Store) ReservedQuantity(ctx context.Context, productID string, now time.Time) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM reservations
		WHERE product_id = $1 AND expires_at > $2`, productID, now).Scan(&n)
	return n, classify("reserved quantity", err)
}

func (s *Store) DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, classify("delete expired reservations", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ReleaseReservations(ctx context.Context, userID string, productIDs []string) error {
	return classify("release reservations", releaseHolds(ctx, s.DB, userID, productIDs))
}

func releaseHolds(ctx context.Context, q querier, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `DELETE FROM reservations WHERE user_id = $1 AND product_id = ANY($2)`, userID, productIDs)
	if err != nil {
		return fmt.Errorf("release holds: %w", err)
	}
	return nil
}
