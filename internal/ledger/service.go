package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/aml"
	"github.com/jeanElossy/api-paynoval-sub000/internal/coordinator"
	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
	"github.com/jeanElossy/api-paynoval-sub000/internal/rates"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// Service owns the transfer state machine and the ledger mutations behind it.
// All balance writes go through the coordinator with conditional updates; the
// AML gate and rate lookups run strictly outside any store transaction.
type Service struct {
	balances *repository.BalanceStore
	ledger   *repository.LedgerStore
	coord    *coordinator.Coordinator
	gate     aml.Gate
	rates    rates.RateService
	logger   *zap.Logger

	cancellationRefundRate decimal.Decimal
	defaultCurrency        string
	systemUserID           uuid.UUID
}

func NewService(balances *repository.BalanceStore, ledgerStore *repository.LedgerStore, coord *coordinator.Coordinator, gate aml.Gate, rateSvc rates.RateService, logger *zap.Logger) *Service {
	return &Service{
		balances:               balances,
		ledger:                 ledgerStore,
		coord:                  coord,
		gate:                   gate,
		rates:                  rateSvc,
		logger:                 logger,
		cancellationRefundRate: decimal.RequireFromString("0.99"),
		defaultCurrency:        "XAF",
		systemUserID:           uuid.MustParse(domain.SystemUserID),
	}
}

// WithCancellationRefundRate overrides the fraction of gross+fee returned on
// cancellation (the remainder is the retained cancellation fee).
func (s *Service) WithCancellationRefundRate(rate decimal.Decimal) *Service {
	if rate.IsPositive() && rate.LessThanOrEqual(decimal.NewFromInt(1)) {
		s.cancellationRefundRate = rate
	}
	return s
}

// WithDefaultCurrency overrides the fallback currency applied when a rate
// lookup cannot resolve an input currency.
func (s *Service) WithDefaultCurrency(currency string) *Service {
	if currency != "" {
		s.defaultCurrency = currency
	}
	return s
}

// SystemUserID returns the administrative counterparty account.
func (s *Service) SystemUserID() uuid.UUID { return s.systemUserID }

// Store returns the ledger store for read paths that bypass the state machine.
func (s *Service) Store() *repository.LedgerStore { return s.ledger }

// Balances returns the balance store for read paths.
func (s *Service) Balances() *repository.BalanceStore { return s.balances }

// eventPayload is the wire shape written into outbox events and in-app
// notification rows.
type eventPayload struct {
	TransferID     string    `json:"transfer_id"`
	EventType      string    `json:"event_type"`
	Status         string    `json:"status"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	GrossAmount    string    `json:"gross_amount"`
	Fee            string    `json:"fee"`
	NetAmount      string    `json:"net_amount"`
	Currency       string    `json:"currency"`
	Reference      string    `json:"reference"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// writeTransferEvents durably records one outbox event per interested party,
// plus the denormalized in-app notification row, inside the caller's ledger
// transaction.
func (s *Service) writeTransferEvents(ctx context.Context, lq *repository.LedgerQueries, t *models.Transfer, eventType, reason string) error {
	payload, err := json.Marshal(eventPayload{
		TransferID:  t.ID.String(),
		EventType:   eventType,
		Status:      t.Status,
		SenderID:    t.SenderID.String(),
		ReceiverID:  t.ReceiverID.String(),
		GrossAmount: domain.NewMoney(t.GrossCents, t.SenderCurrency).ToDecimal().StringFixed(2),
		Fee:         domain.NewMoney(t.FeeCents, t.SenderCurrency).ToDecimal().StringFixed(2),
		NetAmount:   domain.NewMoney(t.NetCents, t.SenderCurrency).ToDecimal().StringFixed(2),
		Currency:    t.SenderCurrency,
		Reference:   t.Reference,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	for _, recipient := range s.interestedParties(t) {
		if err := lq.InsertOutboxEvent(ctx, &models.OutboxEvent{
			ID:          uuid.New(),
			Service:     domain.OutboxServiceNotifications,
			EventType:   eventType,
			RecipientID: recipient,
			Payload:     payload,
		}); err != nil {
			return err
		}
		if err := lq.InsertNotification(ctx, &models.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Type:        eventType,
			Payload:     payload,
		}); err != nil {
			return err
		}
	}
	return nil
}

// interestedParties returns the human parties to notify, deduplicated and
// excluding the administrative account.
func (s *Service) interestedParties(t *models.Transfer) []uuid.UUID {
	parties := make([]uuid.UUID, 0, 2)
	if t.SenderID != s.systemUserID {
		parties = append(parties, t.SenderID)
	}
	if t.ReceiverID != s.systemUserID && t.ReceiverID != t.SenderID {
		parties = append(parties, t.ReceiverID)
	}
	return parties
}

func (s *Service) audit(ctx context.Context, lq *repository.LedgerQueries, transferID uuid.UUID, actorID *uuid.UUID, action, prev, next string, metadata []byte) error {
	return lq.InsertAuditLog(ctx, "transfer", transferID, actorID, action, prev, next, metadata)
}
