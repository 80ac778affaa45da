// Package postgres is the pgx backed orders.Store. Stock, reservation and
// credential invariants are also enforced by the schema.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
	"github.com/ariefcatur/go-bakery-orders/internal/inventory"
	"github.com/ariefcatur/go-bakery-orders/internal/orders"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implements orders.Tx on top of a querier.
type Queries struct {
	q querier
}

type Store struct {
	*Queries
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{Queries: &Queries{q: db}, DB: db}
}

var _ orders.Store = (*Store)(nil)
var _ catalog.Repo = (*Store)(nil)

// WithinTx runs fn in a read-committed transaction. Row locks taken with
// FOR UPDATE are held until commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return s.inTx(ctx, func(q *Queries) error { return fn(ctx, q) })
}

func (s *Store) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DecrementStock needs its row locks, so outside a unit of work it opens one.
func (s *Store) DecrementStock(ctx context.Context, lines []inventory.Line) ([]apperr.Shortage, error) {
	var shortages []apperr.Shortage
	err := s.inTx(ctx, func(q *Queries) error {
		var err error
		shortages, err = q.DecrementStock(ctx, lines)
		if err == nil && len(shortages) > 0 {
			return errShortage
		}
		return err
	})
	if errors.Is(err, errShortage) {
		return shortages, nil
	}
	return shortages, err
}

var errShortage = errors.New("stock shortage")

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what, id)
	}
	return err
}
