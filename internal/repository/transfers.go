package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
)

// LedgerQueries holds the hand-written queries against the transaction
// record store.
type LedgerQueries struct {
	db DBTX
}

func NewLedgerQueries(db DBTX) *LedgerQueries {
	return &LedgerQueries{db: db}
}

// WithTx binds the query set to an open transaction.
func (q *LedgerQueries) WithTx(tx pgx.Tx) *LedgerQueries {
	return &LedgerQueries{db: tx}
}

// DB exposes the bound executor so a sibling query set can share the same
// transaction when both stores live in one database.
func (q *LedgerQueries) DB() DBTX { return q.db }

const transferColumns = `id, sender_id, receiver_id, gross_cents, fee_cents, net_cents,
	sender_currency, receiver_currency, exchange_rate, local_amount_cents,
	status, archived, flagged, relaunch_count, secret_hash, idempotency_key,
	kind, mode, reference, description, metadata, version,
	created_at, confirmed_at, cancelled_at, refunded_at`

func scanTransfer(row pgx.Row) (*models.Transfer, error) {
	t := &models.Transfer{}
	err := row.Scan(
		&t.ID, &t.SenderID, &t.ReceiverID, &t.GrossCents, &t.FeeCents, &t.NetCents,
		&t.SenderCurrency, &t.ReceiverCurrency, &t.ExchangeRate, &t.LocalAmountCents,
		&t.Status, &t.Archived, &t.Flagged, &t.RelaunchCount, &t.SecretHash, &t.IdempotencyKey,
		&t.Kind, &t.Mode, &t.Reference, &t.Description, &t.Metadata, &t.Version,
		&t.CreatedAt, &t.ConfirmedAt, &t.CancelledAt, &t.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertTransfer creates the transfer record. The unique index on
// idempotency_key is the storage-level dedup guarantee; callers detect
// the 23505 violation via IsUniqueViolation.
func (q *LedgerQueries) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	query := `INSERT INTO transfers (
			id, sender_id, receiver_id, gross_cents, fee_cents, net_cents,
			sender_currency, receiver_currency, exchange_rate, local_amount_cents,
			status, secret_hash, idempotency_key, kind, mode, reference,
			description, metadata, version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, NOW())
		RETURNING created_at`
	err := q.db.QueryRow(ctx, query,
		t.ID, t.SenderID, t.ReceiverID, t.GrossCents, t.FeeCents, t.NetCents,
		t.SenderCurrency, t.ReceiverCurrency, t.ExchangeRate, t.LocalAmountCents,
		t.Status, t.SecretHash, t.IdempotencyKey, t.Kind, t.Mode, t.Reference,
		t.Description, t.Metadata,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (q *LedgerQueries) GetTransfer(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	t, err := scanTransfer(q.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return t, nil
}

func (q *LedgerQueries) GetTransferByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error) {
	t, err := scanTransfer(q.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}
	return t, nil
}

// TransitionStatus conditions the status write on the expected pre-state so a
// confirm racing a cancel yields exactly one winner. Returns rows affected;
// 0 means the transfer was not in the expected state.
func (q *LedgerQueries) TransitionStatus(ctx context.Context, id uuid.UUID, expected, next string) (int64, error) {
	query := `UPDATE transfers
		SET status = $3,
		    version = version + 1,
		    confirmed_at = CASE WHEN $3 = 'confirmed' THEN NOW() ELSE confirmed_at END,
		    cancelled_at = CASE WHEN $3 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    refunded_at  = CASE WHEN $3 = 'refunded'  THEN NOW() ELSE refunded_at  END
		WHERE id = $1 AND status = $2`
	tag, err := q.db.Exec(ctx, query, id, expected, next)
	if err != nil {
		return 0, fmt.Errorf("failed to transition transfer status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateReceiver reassigns a pending transfer to a new receiver.
func (q *LedgerQueries) UpdateReceiver(ctx context.Context, id, newReceiver uuid.UUID) (int64, error) {
	query := `UPDATE transfers SET receiver_id = $2, version = version + 1
		WHERE id = $1 AND status = 'pending'`
	tag, err := q.db.Exec(ctx, query, id, newReceiver)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign transfer: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetArchived toggles the orthogonal archive flag; allowed from any state.
func (q *LedgerQueries) SetArchived(ctx context.Context, id uuid.UUID, archived bool) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE transfers SET archived = $2, version = version + 1 WHERE id = $1`, id, archived)
	if err != nil {
		return 0, fmt.Errorf("failed to archive transfer: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetFlagged marks a transfer for compliance review without changing status.
func (q *LedgerQueries) SetFlagged(ctx context.Context, id uuid.UUID, flagged bool) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE transfers SET flagged = $2, version = version + 1 WHERE id = $1`, id, flagged)
	if err != nil {
		return 0, fmt.Errorf("failed to flag transfer: %w", err)
	}
	return tag.RowsAffected(), nil
}

// IncrementRelaunch bumps the relaunch counter, usable from pending or
// cancelled only.
func (q *LedgerQueries) IncrementRelaunch(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `UPDATE transfers SET relaunch_count = relaunch_count + 1, version = version + 1
		WHERE id = $1 AND status IN ('pending', 'cancelled')`
	tag, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to relaunch transfer: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TransferFilter narrows admin listings.
type TransferFilter struct {
	Status     string
	SenderID   *uuid.UUID
	ReceiverID *uuid.UUID
	Flagged    *bool
	Archived   *bool
	Limit      int
	Offset     int
}

func (q *LedgerQueries) ListTransfers(ctx context.Context, f TransferFilter) ([]models.Transfer, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.SenderID != nil {
		conds = append(conds, "sender_id = "+arg(*f.SenderID))
	}
	if f.ReceiverID != nil {
		conds = append(conds, "receiver_id = "+arg(*f.ReceiverID))
	}
	if f.Flagged != nil {
		conds = append(conds, "flagged = "+arg(*f.Flagged))
	}
	if f.Archived != nil {
		conds = append(conds, "archived = "+arg(*f.Archived))
	}

	query := `SELECT ` + transferColumns + ` FROM transfers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// InsertAuditLog stores a single immutable audit record.
func (q *LedgerQueries) InsertAuditLog(ctx context.Context, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action, prevState, nextState string, metadata []byte) error {
	query := `INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NOW())`
	if _, err := q.db.Exec(ctx, query, entityType, entityID, actorID, action, prevState, nextState, metadata); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
