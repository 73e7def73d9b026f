package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
)

// BalanceQueries holds the hand-written queries against the balance store.
type BalanceQueries struct {
	db DBTX
}

func NewBalanceQueries(db DBTX) *BalanceQueries {
	return &BalanceQueries{db: db}
}

// WithTx binds the query set to an open transaction.
func (q *BalanceQueries) WithTx(tx pgx.Tx) *BalanceQueries {
	return &BalanceQueries{db: tx}
}

func (q *BalanceQueries) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, name, role, country, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, user.ID, user.Email, user.Name, user.Role, user.Country).Scan(&user.CreatedAt); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (q *BalanceQueries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, name, role, country, created_at FROM users WHERE id = $1`
	err := q.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.Country, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (q *BalanceQueries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, name, role, country, created_at FROM users WHERE email = $1`
	err := q.db.QueryRow(ctx, query, email).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.Country, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (q *BalanceQueries) GetBalance(ctx context.Context, ownerID uuid.UUID) (*models.Balance, error) {
	b := &models.Balance{}
	query := `SELECT owner_id, amount_cents, currency, version FROM balances WHERE owner_id = $1`
	err := q.db.QueryRow(ctx, query, ownerID).Scan(&b.OwnerID, &b.AmountCents, &b.Currency, &b.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lazily created accounts start at zero.
			return &models.Balance{OwnerID: ownerID, AmountCents: 0}, nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

// CreditBalance adds cents to the owner's balance, creating the row lazily on
// first credit. The increment is atomic; no read-modify-write.
func (q *BalanceQueries) CreditBalance(ctx context.Context, ownerID uuid.UUID, cents int64, currency string) error {
	query := `INSERT INTO balances (owner_id, amount_cents, currency, version)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (owner_id) DO UPDATE
		SET amount_cents = balances.amount_cents + EXCLUDED.amount_cents,
		    version = balances.version + 1`
	if _, err := q.db.Exec(ctx, query, ownerID, cents, currency); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

// DebitBalance subtracts cents iff the balance covers the debit. Returns the
// number of rows affected: 0 means insufficient funds or missing account.
// The condition on the read value is the sole synchronization primitive.
func (q *BalanceQueries) DebitBalance(ctx context.Context, ownerID uuid.UUID, cents int64) (int64, error) {
	query := `UPDATE balances
		SET amount_cents = amount_cents - $1, version = version + 1
		WHERE owner_id = $2 AND amount_cents >= $1`
	tag, err := q.db.Exec(ctx, query, cents, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DebitBalanceUnchecked subtracts cents without the sufficiency condition.
// Only the administrative account may be debited this way; it is allowed to
// hold a short position and the schema check enforces that exemption.
func (q *BalanceQueries) DebitBalanceUnchecked(ctx context.Context, ownerID uuid.UUID, cents int64, currency string) error {
	query := `INSERT INTO balances (owner_id, amount_cents, currency, version)
		VALUES ($1, 0 - $2, $3, 1)
		ON CONFLICT (owner_id) DO UPDATE
		SET amount_cents = balances.amount_cents - $2,
		    version = balances.version + 1`
	if _, err := q.db.Exec(ctx, query, ownerID, cents, currency); err != nil {
		return fmt.Errorf("failed to debit system balance: %w", err)
	}
	return nil
}
