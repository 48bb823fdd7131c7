// Package postgres implements the storage ports on a pgx pool. Stock and
// assignment changes are single conditional UPDATEs; order lifecycle changes
// lock the order row with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/cart"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/inventory"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/orders"
	"github.com/HuyMinh311003/Pet-Kingdom-sub000/internal/pricing"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
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

func New(db *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{DB: db, Log: log}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify("begin", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.Log.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return classify("tx", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

// classify leaves domain errors alone, maps a missing row to ErrNotFound and
// reports anything that is not a server-side SQL error as ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if orders.IsBusiness(err) || errors.Is(err, orders.ErrStoreUnavailable) ||
		errors.Is(err, inventory.ErrProductNotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, orders.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: postgres %s: %w", op, pgErr.Code, err)
	}
	return fmt.Errorf("%s: %w: %v", op, orders.ErrStoreUnavailable, err)
}

// isUniqueViolation reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
