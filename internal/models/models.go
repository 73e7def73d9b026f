package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance is the per-user spendable funds row in the balance store.
// AmountCents is mutated only through conditional atomic increments.
type Balance struct {
	OwnerID    uuid.UUID `json:"owner_id"`
	AmountCents int64    `json:"amount_cents"`
	Currency   string    `json:"currency"`
	Version    int64     `json:"version"`
}

// Transfer is the transaction record; created once per attempt, mutated only
// along allowed status transitions, never deleted. The verification secret is
// stored as a hash and never serialized outward.
type Transfer struct {
	ID               uuid.UUID       `json:"id"`
	SenderID         uuid.UUID       `json:"sender_id"`
	ReceiverID       uuid.UUID       `json:"receiver_id"`
	GrossCents       int64           `json:"gross_cents"`
	FeeCents         int64           `json:"fee_cents"`
	NetCents         int64           `json:"net_cents"`
	SenderCurrency   string          `json:"sender_currency"`
	ReceiverCurrency string          `json:"receiver_currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	LocalAmountCents int64           `json:"local_amount_cents"`
	Status           string          `json:"status"`
	Archived         bool            `json:"archived"`
	Flagged          bool            `json:"flagged"`
	RelaunchCount    int32           `json:"relaunch_count"`
	SecretHash       []byte          `json:"-"`
	IdempotencyKey   *string         `json:"idempotency_key,omitempty"`
	Kind             string          `json:"kind,omitempty"`
	Mode             string          `json:"mode,omitempty"`
	Reference        string          `json:"reference"`
	Description      string          `json:"description,omitempty"`
	Metadata         []byte          `json:"metadata,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	ConfirmedAt      *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt       *time.Time      `json:"refunded_at,omitempty"`
}

// OutboxEvent is a durable side-effect intent written in the same atomic
// scope as the state transition that originated it.
type OutboxEvent struct {
	ID          uuid.UUID  `json:"id"`
	Service     string     `json:"service"`
	EventType   string     `json:"event_type"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Payload     []byte     `json:"payload"`
	Processed   bool       `json:"processed"`
	RetryCount  int32      `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Notification is the denormalized in-app projection of an outbox event.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Type        string    `json:"type"`
	Payload     []byte    `json:"payload"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
