package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
)

// InsertOutboxEvent durably records a side-effect intent. It must be called
// inside the same transaction as the state transition that originates it.
func (q *LedgerQueries) InsertOutboxEvent(ctx context.Context, e *models.OutboxEvent) error {
	query := `INSERT INTO outbox_events (id, service, event_type, recipient_id, payload, processed, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, e.ID, e.Service, e.EventType, e.RecipientID, e.Payload).Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ClaimOutboxEvents leases a batch of unprocessed events in creation order.
// SKIP LOCKED keeps concurrent dispatcher instances from claiming the same
// rows; the lease cutoff reclaims events whose worker died mid-delivery.
func (q *LedgerQueries) ClaimOutboxEvents(ctx context.Context, batchSize int32, leasedBefore time.Time) ([]models.OutboxEvent, error) {
	query := `UPDATE outbox_events
		SET claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE processed = FALSE AND (claimed_at IS NULL OR claimed_at < $2)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, service, event_type, recipient_id, payload, processed, retry_count, created_at, processed_at`
	rows, err := q.db.Query(ctx, query, batchSize, leasedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.Service, &e.EventType, &e.RecipientID, &e.Payload, &e.Processed, &e.RetryCount, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (q *LedgerQueries) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE outbox_events SET processed = TRUE, processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkOutboxFailed releases the lease and bumps the retry counter so the
// event is re-claimed on a later poll.
func (q *LedgerQueries) MarkOutboxFailed(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE outbox_events SET retry_count = retry_count + 1, claimed_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

// DeleteProcessedOutboxBefore purges delivered events past the retention
// window. Unprocessed events are never purged.
func (q *LedgerQueries) DeleteProcessedOutboxBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM outbox_events WHERE processed = TRUE AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *LedgerQueries) CountUnprocessedOutbox(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE processed = FALSE`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unprocessed outbox events: %w", err)
	}
	return n, nil
}

// InsertNotification writes the denormalized in-app projection row.
func (q *LedgerQueries) InsertNotification(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (id, recipient_id, type, payload, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, n.ID, n.RecipientID, n.Type, n.Payload).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (q *LedgerQueries) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	query := `SELECT id, recipient_id, type, payload, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead scopes the update to the recipient so users cannot
// acknowledge someone else's notifications.
func (q *LedgerQueries) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// IdempotencyRecord is a stored HTTP response for replay.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
}

func (q *LedgerQueries) GetIdempotencyKey(ctx context.Context, key string) (*IdempotencyRecord, error) {
	rec := &IdempotencyRecord{}
	query := `SELECT key, request_hash, method, path, response_status, response_body, content_type, in_progress
		FROM idempotency_keys WHERE key = $1`
	err := q.db.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.RequestHash, &rec.Method, &rec.Path,
		&rec.ResponseStatus, &rec.ResponseBody, &rec.ContentType, &rec.InProgress)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ReserveIdempotencyKey claims a key for first execution. Returns false when
// another request already holds it; the unique primary key closes the race.
func (q *LedgerQueries) ReserveIdempotencyKey(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	query := `INSERT INTO idempotency_keys (key, request_hash, method, path, response_status, response_body, content_type, in_progress, created_at)
		VALUES ($1, $2, $3, $4, 0, ''::bytea, '', TRUE, NOW())
		ON CONFLICT (key) DO NOTHING
		RETURNING key`
	var reserved string
	err := q.db.QueryRow(ctx, query, key, requestHash, method, path).Scan(&reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return true, nil
}

func (q *LedgerQueries) FinalizeIdempotencyKey(ctx context.Context, key, requestHash string, status int32, body []byte, contentType string) (*IdempotencyRecord, error) {
	query := `UPDATE idempotency_keys
		SET response_status = $3, response_body = $4, content_type = $5, in_progress = FALSE
		WHERE key = $1 AND request_hash = $2
		RETURNING key, request_hash, method, path, response_status, response_body, content_type, in_progress`
	rec := &IdempotencyRecord{}
	err := q.db.QueryRow(ctx, query, key, requestHash, status, body, contentType).Scan(
		&rec.Key, &rec.RequestHash, &rec.Method, &rec.Path,
		&rec.ResponseStatus, &rec.ResponseBody, &rec.ContentType, &rec.InProgress)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteIdempotencyKeysBefore expires replay records past the TTL.
func (q *LedgerQueries) DeleteIdempotencyKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
