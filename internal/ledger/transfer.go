package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/aml"
	"github.com/jeanElossy/api-paynoval-sub000/internal/coordinator"
	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/rates"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// InitiateCmd carries everything needed to open a pending transfer.
type InitiateCmd struct {
	SenderID         uuid.UUID
	RecipientEmail   string
	Amount           decimal.Decimal
	Fee              decimal.Decimal
	SenderCurrency   string
	ReceiverCurrency string
	Country          string
	Description      string
	IdempotencyKey   string
}

// InitiateResult returns the created transfer and, on first execution only,
// the verification token. Replays never re-expose the secret.
type InitiateResult struct {
	Transfer          *models.Transfer
	VerificationToken string
	Idempotent        bool
}

// Initiate creates a pending transfer. No funds move; the sender is debited
// at confirmation time. The AML gate and rate lookup run before any write.
func (s *Service) Initiate(ctx context.Context, cmd InitiateCmd) (*InitiateResult, error) {
	if !cmd.Amount.IsPositive() {
		return nil, fmt.Errorf("gross amount must be positive: %w", domain.ErrInvalidAmount)
	}
	if cmd.Fee.IsNegative() {
		return nil, fmt.Errorf("fee must not be negative: %w", domain.ErrInvalidAmount)
	}
	grossCents, err := domain.CentsFromDecimal(cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidAmount)
	}
	feeCents, err := domain.CentsFromDecimal(cmd.Fee)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidAmount)
	}

	bq := s.balances.Queries()
	sender, err := bq.GetUser(ctx, cmd.SenderID)
	if err != nil {
		if errors.Is(err, domain.ErrRecipientNotFound) {
			return nil, fmt.Errorf("sender %s: %w", cmd.SenderID, domain.ErrNotFound)
		}
		return nil, err
	}
	recipient, err := bq.GetUserByEmail(ctx, cmd.RecipientEmail)
	if err != nil {
		return nil, err
	}
	if sender.ID == recipient.ID {
		return nil, domain.ErrSelfTransfer
	}

	if cmd.IdempotencyKey != "" {
		existing, err := s.ledger.Queries().GetTransferByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err == nil {
			observability.IncrementIdempotencyEvent("initiate_replay")
			return &InitiateResult{Transfer: existing, Idempotent: true}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	senderCurrency, receiverCurrency := cmd.SenderCurrency, cmd.ReceiverCurrency
	if senderCurrency == "" {
		senderCurrency = s.defaultCurrency
	}
	if receiverCurrency == "" {
		receiverCurrency = senderCurrency
	}

	currencyFallback := false
	rate, err := s.rates.GetExchangeRate(ctx, senderCurrency, receiverCurrency)
	if err != nil {
		if !errors.Is(err, rates.ErrUnknownCurrency) {
			return nil, fmt.Errorf("rate lookup: %w", err)
		}
		// Unresolvable currency: fall back to the configured currency and
		// flag the record for compliance review instead of guessing a rate.
		currencyFallback = true
		receiverCurrency = senderCurrency
		rate = decimal.NewFromInt(1)
		s.logger.Warn("currency fallback applied; transfer flagged for compliance",
			zap.String("sender_currency", cmd.SenderCurrency),
			zap.String("receiver_currency", cmd.ReceiverCurrency),
			zap.String("fallback", senderCurrency),
		)
	}

	verdict, err := s.gate.Check(ctx, aml.CheckRequest{
		SenderID:   sender.ID,
		ReceiverID: recipient.ID,
		Amount:     cmd.Amount,
		Currency:   senderCurrency,
		Country:    cmd.Country,
		Kind:       "p2p",
	})
	if err != nil {
		return nil, fmt.Errorf("aml check: %w", err)
	}
	if !verdict.Approved {
		return nil, fmt.Errorf("%s: %w", verdict.Reason, domain.ErrAMLRejected)
	}

	token, secretHash, err := newVerificationSecret()
	if err != nil {
		return nil, err
	}

	netCents := grossCents
	localCents := domain.NewMoney(netCents, senderCurrency).Convert(receiverCurrency, rate).Cents

	metadata, err := json.Marshal(map[string]any{
		"country":           cmd.Country,
		"channel":           "p2p",
		"aml_score":         verdict.Score,
		"currency_fallback": currencyFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	transfer := &models.Transfer{
		ID:               uuid.New(),
		SenderID:         sender.ID,
		ReceiverID:       recipient.ID,
		GrossCents:       grossCents,
		FeeCents:         feeCents,
		NetCents:         netCents,
		SenderCurrency:   senderCurrency,
		ReceiverCurrency: receiverCurrency,
		ExchangeRate:     rate,
		LocalAmountCents: localCents,
		Status:           domain.TransferStatusPending,
		Flagged:          currencyFallback,
		SecretHash:       secretHash,
		Reference:        newReference(),
		Description:      cmd.Description,
		Metadata:         metadata,
	}
	if cmd.IdempotencyKey != "" {
		key := cmd.IdempotencyKey
		transfer.IdempotencyKey = &key
	}

	err = s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		if err := lq.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		if err := s.audit(ctx, lq, transfer.ID, &sender.ID, "initiated", "", domain.TransferStatusPending, metadata); err != nil {
			return err
		}
		return s.writeTransferEvents(ctx, lq, transfer, domain.EventTransferInitiated, "")
	})
	if err != nil {
		// A concurrent duplicate lost the insert race; the unique index on
		// idempotency_key is the authoritative guard.
		if repository.IsUniqueViolation(err) && cmd.IdempotencyKey != "" {
			existing, lookupErr := s.ledger.Queries().GetTransferByIdempotencyKey(ctx, cmd.IdempotencyKey)
			if lookupErr == nil {
				observability.IncrementIdempotencyEvent("initiate_replay_race")
				return &InitiateResult{Transfer: existing, Idempotent: true}, nil
			}
		}
		return nil, err
	}

	observability.IncrementTransferTransition("initiated")
	return &InitiateResult{Transfer: transfer, VerificationToken: token}, nil
}

// Confirm settles a pending transfer: debit sender gross+fee conditioned on
// sufficient funds, credit receiver, flip the record, write the outbox. A
// secret mismatch or uncoverable debit cancels the transfer.
func (s *Service) Confirm(ctx context.Context, transferID uuid.UUID, secret string, actorID uuid.UUID) (*models.Transfer, error) {
	t, err := s.ledger.Queries().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferStatusPending {
		return nil, domain.ErrAlreadyProcessed
	}

	if !secretMatches(t.SecretHash, secret) {
		if cancelErr := s.cancelWithoutRefund(ctx, t, actorID, "invalid_secret"); cancelErr != nil {
			if errors.Is(cancelErr, domain.ErrAlreadyProcessed) {
				return nil, cancelErr
			}
			return nil, fmt.Errorf("cancel after secret mismatch: %w", cancelErr)
		}
		observability.IncrementTransferTransition("cancelled_invalid_secret")
		return nil, domain.ErrInvalidSecret
	}

	totalCents := t.GrossCents + t.FeeCents
	err = s.coord.Execute(ctx, t.ID.String(),
		coordinator.Step{
			Name: "debit_sender",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Balances.DebitBalance(ctx, t.SenderID, totalCents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return domain.ErrInsufficientFunds
				}
				return nil
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, t.SenderID, totalCents, t.SenderCurrency)
			},
		},
		coordinator.Step{
			Name: "credit_receiver",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, t.ReceiverID, t.LocalAmountCents, t.ReceiverCurrency)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Balances.DebitBalance(ctx, t.ReceiverID, t.LocalAmountCents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return fmt.Errorf("receiver %s already spent compensated credit", t.ReceiverID)
				}
				return nil
			},
		},
		coordinator.Step{
			Name: "confirm_record",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Ledger.TransitionStatus(ctx, t.ID, domain.TransferStatusPending, domain.TransferStatusConfirmed)
				if err != nil {
					return err
				}
				if rows == 0 {
					return domain.ErrAlreadyProcessed
				}
				return s.audit(ctx, sc.Ledger, t.ID, &actorID, "confirmed", domain.TransferStatusPending, domain.TransferStatusConfirmed, nil)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				_, err := sc.Ledger.TransitionStatus(ctx, t.ID, domain.TransferStatusConfirmed, domain.TransferStatusPending)
				return err
			},
		},
		coordinator.Step{
			Name: "write_outbox",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				confirmed := *t
				confirmed.Status = domain.TransferStatusConfirmed
				return s.writeTransferEvents(ctx, sc.Ledger, &confirmed, domain.EventTransferConfirmed, "")
			},
		},
	)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			// Per policy a failed debit does not leave the transfer retryable:
			// the attempt is cancelled and the parties are notified.
			if cancelErr := s.cancelWithoutRefund(ctx, t, actorID, "insufficient_funds"); cancelErr != nil && !errors.Is(cancelErr, domain.ErrAlreadyProcessed) {
				s.logger.Error("failed to cancel transfer after uncovered debit",
					zap.String("transfer_id", t.ID.String()), zap.Error(cancelErr))
			}
			observability.IncrementTransferTransition("cancelled_insufficient_funds")
			return nil, domain.ErrInsufficientFunds
		}
		return nil, err
	}

	observability.IncrementTransferTransition("confirmed")
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// cancelWithoutRefund flips a pending transfer to cancelled and notifies the
// parties, without moving funds. Used on secret mismatch and uncovered debit.
func (s *Service) cancelWithoutRefund(ctx context.Context, t *models.Transfer, actorID uuid.UUID, reason string) error {
	return s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		rows, err := lq.TransitionStatus(ctx, t.ID, domain.TransferStatusPending, domain.TransferStatusCancelled)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrAlreadyProcessed
		}
		if err := s.audit(ctx, lq, t.ID, &actorID, "cancelled", domain.TransferStatusPending, domain.TransferStatusCancelled, []byte(fmt.Sprintf(`{"reason":%q}`, reason))); err != nil {
			return err
		}
		cancelled := *t
		cancelled.Status = domain.TransferStatusCancelled
		return s.writeTransferEvents(ctx, lq, &cancelled, domain.EventTransferCancelled, reason)
	})
}

// CancelResult reports the refund credited back to the sender.
type CancelResult struct {
	Transfer    *models.Transfer
	RefundCents int64
}

// Cancel aborts a pending transfer. The sender is refunded the configured
// fraction of gross+fee (default 99%; the retained 1% is the cancellation
// fee), funded from the administrative account.
func (s *Service) Cancel(ctx context.Context, transferID, actorID uuid.UUID, isAdmin bool, reason string) (*CancelResult, error) {
	t, err := s.ledger.Queries().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferStatusPending {
		return nil, domain.ErrAlreadyProcessed
	}
	if !isAdmin && actorID != t.SenderID && actorID != t.ReceiverID {
		return nil, domain.ErrForbidden
	}

	refund := domain.NewMoney(t.GrossCents+t.FeeCents, t.SenderCurrency).Fraction(s.cancellationRefundRate)
	err = s.coord.Execute(ctx, t.ID.String(),
		coordinator.Step{
			Name: "debit_system",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.DebitBalanceUnchecked(ctx, s.systemUserID, refund.Cents, t.SenderCurrency)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, s.systemUserID, refund.Cents, t.SenderCurrency)
			},
		},
		coordinator.Step{
			Name: "credit_sender_refund",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, t.SenderID, refund.Cents, t.SenderCurrency)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Balances.DebitBalance(ctx, t.SenderID, refund.Cents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return fmt.Errorf("sender %s already spent compensated refund", t.SenderID)
				}
				return nil
			},
		},
		coordinator.Step{
			Name: "cancel_record",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Ledger.TransitionStatus(ctx, t.ID, domain.TransferStatusPending, domain.TransferStatusCancelled)
				if err != nil {
					return err
				}
				if rows == 0 {
					return domain.ErrAlreadyProcessed
				}
				meta := []byte(fmt.Sprintf(`{"reason":%q,"refund_cents":%d}`, reason, refund.Cents))
				return s.audit(ctx, sc.Ledger, t.ID, &actorID, "cancelled", domain.TransferStatusPending, domain.TransferStatusCancelled, meta)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				_, err := sc.Ledger.TransitionStatus(ctx, t.ID, domain.TransferStatusCancelled, domain.TransferStatusPending)
				return err
			},
		},
		coordinator.Step{
			Name: "write_outbox",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				cancelled := *t
				cancelled.Status = domain.TransferStatusCancelled
				return s.writeTransferEvents(ctx, sc.Ledger, &cancelled, domain.EventTransferCancelled, reason)
			},
		},
	)
	if err != nil {
		return nil, err
	}

	observability.IncrementTransferTransition("cancelled")
	updated, err := s.ledger.Queries().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	return &CancelResult{Transfer: updated, RefundCents: refund.Cents}, nil
}

// Refund reverses a confirmed transfer, admin-only and at most once: the
// receiver is debited the credited amount (which must be coverable) and the
// sender is credited the net amount back.
func (s *Service) Refund(ctx context.Context, transferID, adminID uuid.UUID, reason string) (*models.Transfer, error) {
	t, err := s.ledger.Queries().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferStatusConfirmed {
		return nil, domain.ErrAlreadyProcessed
	}

	err = s.coord.Execute(ctx, t.ID.String(),
		coordinator.Step{
			Name: "debit_receiver",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Balances.DebitBalance(ctx, t.ReceiverID, t.LocalAmountCents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return domain.ErrInsufficientRecipientFunds
				}
				return nil
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, t.ReceiverID, t.LocalAmountCents, t.ReceiverCurrency)
			},
		},
		coordinator.Step{
			Name: "credit_sender",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, t.SenderID, t.NetCents, t.SenderCurrency)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Balances.DebitBalance(ctx, t.SenderID, t.NetCents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return fmt.Errorf("sender %s already spent compensated refund", t.SenderID)
				}
				return nil
			},
		},
		coordinator.Step{
			Name: "refund_record",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Ledger.TransitionStatus(ctx, t.ID, domain.TransferStatusConfirmed, domain.TransferStatusRefunded)
				if err != nil {
					return err
				}
				if rows == 0 {
					return domain.ErrAlreadyProcessed
				}
				meta := []byte(fmt.Sprintf(`{"reason":%q}`, reason))
				return s.audit(ctx, sc.Ledger, t.ID, &adminID, "refunded", domain.TransferStatusConfirmed, domain.TransferStatusRefunded, meta)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				_, err := sc.Ledger.TransitionStatus(ctx, t.ID, domain.TransferStatusRefunded, domain.TransferStatusConfirmed)
				return err
			},
		},
		coordinator.Step{
			Name: "write_outbox",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				refunded := *t
				refunded.Status = domain.TransferStatusRefunded
				return s.writeTransferEvents(ctx, sc.Ledger, &refunded, domain.EventTransferRefunded, reason)
			},
		},
	)
	if err != nil {
		return nil, err
	}

	observability.IncrementTransferTransition("refunded")
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// Get returns a transfer visible to the actor (party or admin).
func (s *Service) Get(ctx context.Context, transferID, actorID uuid.UUID, isAdmin bool) (*models.Transfer, error) {
	t, err := s.ledger.Queries().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && actorID != t.SenderID && actorID != t.ReceiverID {
		return nil, domain.ErrForbidden
	}
	return t, nil
}
