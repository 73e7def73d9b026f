package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeanElossy/api-paynoval-sub000/internal/coordinator"
	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// InternalPaymentCmd is a service-to-service money movement. FromUserID and
// ToUserID are optional depending on the kind's mode; the administrative
// account fills the implicit side.
type InternalPaymentCmd struct {
	Kind           Kind
	Amount         decimal.Decimal
	Currency       string
	FromUserID     uuid.UUID
	ToUserID       uuid.UUID
	Reference      string
	Description    string
	IdempotencyKey string
	Metadata       map[string]any
}

// InternalPaymentResult is returned to the calling service. Idempotent is
// true when a prior execution was replayed.
type InternalPaymentResult struct {
	Transfer   *models.Transfer
	Kind       Kind
	Mode       Mode
	Idempotent bool
}

// ExecuteInternalPayment runs an administrative payment end to end: resolve
// the kind's execution mode and parties, record the transfer, move the legs
// the mode calls for, and confirm — all under the coordinator. Internal
// payments settle immediately; there is no verification step.
func (s *Service) ExecuteInternalPayment(ctx context.Context, cmd InternalPaymentCmd) (*InternalPaymentResult, error) {
	if !cmd.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrInvalidAmount)
	}
	amountCents, err := domain.CentsFromDecimal(cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidAmount)
	}
	if cmd.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key required: %w", domain.ErrInvalidOperationKind)
	}

	mode := cmd.Kind.Mode()
	debitParty, creditParty, err := resolveParties(mode, cmd.FromUserID, cmd.ToUserID, s.systemUserID)
	if err != nil {
		return nil, err
	}

	// Every named human party must exist before any mutation.
	for _, id := range []uuid.UUID{debitParty, creditParty} {
		if id == uuid.Nil || id == s.systemUserID {
			continue
		}
		if _, err := s.balances.Queries().GetUser(ctx, id); err != nil {
			return nil, err
		}
	}

	if prior, err := s.replayInternalPayment(ctx, cmd.IdempotencyKey, mode); err != nil || prior != nil {
		return prior, err
	}

	currency := cmd.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	transfer, err := s.buildInternalTransfer(cmd, mode, debitParty, creditParty, amountCents, currency)
	if err != nil {
		return nil, err
	}

	steps := []coordinator.Step{{
		Name: "record_payment",
		Run: func(ctx context.Context, sc *coordinator.Scope) error {
			return sc.Ledger.InsertTransfer(ctx, transfer)
		},
		Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
			_, err := sc.Ledger.TransitionStatus(ctx, transfer.ID, domain.TransferStatusPending, domain.TransferStatusCancelled)
			return err
		},
	}}
	steps = append(steps, s.internalPaymentLegs(mode, debitParty, creditParty, amountCents, currency)...)
	steps = append(steps, coordinator.Step{
		Name: "confirm_payment",
		Run: func(ctx context.Context, sc *coordinator.Scope) error {
			rows, err := sc.Ledger.TransitionStatus(ctx, transfer.ID, domain.TransferStatusPending, domain.TransferStatusConfirmed)
			if err != nil {
				return err
			}
			if rows == 0 {
				return domain.ErrAlreadyProcessed
			}
			if err := s.audit(ctx, sc.Ledger, transfer.ID, nil, "internal_payment", domain.TransferStatusPending, domain.TransferStatusConfirmed, transfer.Metadata); err != nil {
				return err
			}
			confirmed := *transfer
			confirmed.Status = domain.TransferStatusConfirmed
			return s.writeTransferEvents(ctx, sc.Ledger, &confirmed, domain.EventInternalPaymentExecuted, cmd.Kind.String())
		},
	})

	if err := s.coord.Execute(ctx, transfer.ID.String(), steps...); err != nil {
		if repository.IsUniqueViolation(err) {
			// Lost the insert race against a concurrent duplicate.
			if prior, replayErr := s.replayInternalPayment(ctx, cmd.IdempotencyKey, mode); replayErr == nil && prior != nil {
				return prior, nil
			}
		}
		return nil, err
	}

	observability.IncrementTransferTransition("internal_payment")
	s.logger.Info("internal payment executed",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("kind", cmd.Kind.String()),
		zap.String("mode", mode.String()),
		zap.Int64("amount_cents", amountCents),
	)

	final, err := s.ledger.Queries().GetTransfer(ctx, transfer.ID)
	if err != nil {
		return nil, err
	}
	return &InternalPaymentResult{Transfer: final, Kind: cmd.Kind, Mode: mode}, nil
}

func (s *Service) replayInternalPayment(ctx context.Context, key string, mode Mode) (*InternalPaymentResult, error) {
	prior, err := s.ledger.Queries().GetTransferByIdempotencyKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(prior.Kind)
	if err != nil {
		return nil, err
	}
	observability.IncrementIdempotencyEvent("internal_payment_replay")
	return &InternalPaymentResult{Transfer: prior, Kind: kind, Mode: mode, Idempotent: true}, nil
}

func (s *Service) buildInternalTransfer(cmd InternalPaymentCmd, mode Mode, debitParty, creditParty uuid.UUID, amountCents int64, currency string) (*models.Transfer, error) {
	meta := map[string]any{"mode": mode.String()}
	for k, v := range cmd.Metadata {
		meta[k] = v
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	// The no-credit mode records the administrative account as the receiver
	// so the row has two parties; no credit leg actually runs.
	receiver := creditParty
	if receiver == uuid.Nil {
		receiver = s.systemUserID
	}

	reference := cmd.Reference
	if reference == "" {
		reference = newReference()
	}
	key := cmd.IdempotencyKey
	return &models.Transfer{
		ID:               uuid.New(),
		SenderID:         debitParty,
		ReceiverID:       receiver,
		GrossCents:       amountCents,
		NetCents:         amountCents,
		SenderCurrency:   currency,
		ReceiverCurrency: currency,
		ExchangeRate:     decimal.NewFromInt(1),
		LocalAmountCents: amountCents,
		Status:           domain.TransferStatusPending,
		IdempotencyKey:   &key,
		Kind:             cmd.Kind.String(),
		Mode:             mode.String(),
		Reference:        reference,
		Description:      cmd.Description,
		Metadata:         metadata,
	}, nil
}

// internalPaymentLegs builds the balance steps for a mode. Debits against
// human accounts are conditional on sufficient funds; only the
// administrative account may be driven negative.
func (s *Service) internalPaymentLegs(mode Mode, debitParty, creditParty uuid.UUID, amountCents int64, currency string) []coordinator.Step {
	var steps []coordinator.Step

	if debitParty != uuid.Nil {
		debitParty := debitParty
		steps = append(steps, coordinator.Step{
			Name: "debit_leg",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				if debitParty == s.systemUserID {
					return sc.Balances.DebitBalanceUnchecked(ctx, debitParty, amountCents, currency)
				}
				rows, err := sc.Balances.DebitBalance(ctx, debitParty, amountCents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return domain.ErrInsufficientFunds
				}
				return nil
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, debitParty, amountCents, currency)
			},
		})
	}

	if creditParty != uuid.Nil && mode != ModeDebitNoCredit {
		creditParty := creditParty
		steps = append(steps, coordinator.Step{
			Name: "credit_leg",
			Run: func(ctx context.Context, sc *coordinator.Scope) error {
				return sc.Balances.CreditBalance(ctx, creditParty, amountCents, currency)
			},
			Compensate: func(ctx context.Context, sc *coordinator.Scope) error {
				rows, err := sc.Balances.DebitBalance(ctx, creditParty, amountCents)
				if err != nil {
					return err
				}
				if rows == 0 {
					return fmt.Errorf("party %s already spent compensated credit", creditParty)
				}
				return nil
			},
		})
	}

	return steps
}
