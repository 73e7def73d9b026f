package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so every query method can run
// either standalone or inside a coordinator-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BalanceStore wraps the balance-store pool (users and spendable funds).
type BalanceStore struct {
	pool    *pgxpool.Pool
	queries *BalanceQueries
}

func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool, queries: NewBalanceQueries(pool)}
}

// Pool exposes the underlying pool for atomic-scope detection.
func (s *BalanceStore) Pool() *pgxpool.Pool { return s.pool }

// Queries returns the non-transactional query set.
func (s *BalanceStore) Queries() *BalanceQueries { return s.queries }

// RunInTx executes fn within a balance-store transaction.
func (s *BalanceStore) RunInTx(ctx context.Context, fn func(q *BalanceQueries) error) error {
	return runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(s.queries.WithTx(tx))
	})
}

// LedgerStore wraps the transaction-record-store pool (transfers, outbox,
// notifications, idempotency keys, audit log).
type LedgerStore struct {
	pool    *pgxpool.Pool
	queries *LedgerQueries
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool, queries: NewLedgerQueries(pool)}
}

func (s *LedgerStore) Pool() *pgxpool.Pool { return s.pool }

func (s *LedgerStore) Queries() *LedgerQueries { return s.queries }

// RunInTx executes fn within a ledger-store transaction.
func (s *LedgerStore) RunInTx(ctx context.Context, fn func(q *LedgerQueries) error) error {
	return runInTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(s.queries.WithTx(tx))
	})
}

func runInTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error,
// the storage-level guard behind idempotency keys.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
