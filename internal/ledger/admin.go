package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
	"github.com/jeanElossy/api-paynoval-sub000/internal/observability"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// Administrative operations. All are role-gated at the transport layer; the
// adminID here is recorded for the audit trail only. None of these move
// funds — Refund in transfer.go is the one admin operation that does.

// Validate force-confirms a pending transfer without debiting anyone, for
// out-of-band settled operations. The status write is conditional so a racing
// confirm or cancel surfaces as ErrAlreadyProcessed.
func (s *Service) Validate(ctx context.Context, transferID, adminID uuid.UUID, reason string) (*models.Transfer, error) {
	err := s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		rows, err := lq.TransitionStatus(ctx, transferID, domain.TransferStatusPending, domain.TransferStatusConfirmed)
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.conflictOrNotFound(ctx, lq, transferID)
		}
		meta := []byte(fmt.Sprintf(`{"reason":%q}`, reason))
		if err := s.audit(ctx, lq, transferID, &adminID, "validated", domain.TransferStatusPending, domain.TransferStatusConfirmed, meta); err != nil {
			return err
		}
		t, err := lq.GetTransfer(ctx, transferID)
		if err != nil {
			return err
		}
		return s.writeTransferEvents(ctx, lq, t, domain.EventTransferConfirmed, "validated")
	})
	if err != nil {
		return nil, err
	}
	observability.IncrementTransferTransition("validated")
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// Reassign points a pending transfer at a different receiver. The new
// receiver must exist and differ from both current parties.
func (s *Service) Reassign(ctx context.Context, transferID, adminID, newReceiverID uuid.UUID) (*models.Transfer, error) {
	t, err := s.ledger.Queries().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferStatusPending {
		return nil, domain.ErrAlreadyProcessed
	}
	if newReceiverID == t.ReceiverID || newReceiverID == t.SenderID {
		return nil, fmt.Errorf("new receiver must be a distinct party: %w", domain.ErrSelfTransfer)
	}
	if _, err := s.balances.Queries().GetUser(ctx, newReceiverID); err != nil {
		return nil, err
	}

	err = s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		rows, err := lq.UpdateReceiver(ctx, transferID, newReceiverID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrAlreadyProcessed
		}
		meta := []byte(fmt.Sprintf(`{"previous_receiver":%q,"new_receiver":%q}`, t.ReceiverID.String(), newReceiverID.String()))
		return s.audit(ctx, lq, transferID, &adminID, "reassigned", t.Status, t.Status, meta)
	})
	if err != nil {
		return nil, err
	}
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// Archive toggles the orthogonal archived flag. Archived transfers keep
// their status and stay queryable with the archived filter.
func (s *Service) Archive(ctx context.Context, transferID, adminID uuid.UUID, archived bool) (*models.Transfer, error) {
	err := s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		rows, err := lq.SetArchived(ctx, transferID, archived)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		action := "archived"
		if !archived {
			action = "unarchived"
		}
		return s.audit(ctx, lq, transferID, &adminID, action, "", "", nil)
	})
	if err != nil {
		return nil, err
	}
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// Flag marks a transfer for compliance review without touching its status.
func (s *Service) Flag(ctx context.Context, transferID, adminID uuid.UUID, flagged bool, reason string) (*models.Transfer, error) {
	err := s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		rows, err := lq.SetFlagged(ctx, transferID, flagged)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		action := "flagged"
		if !flagged {
			action = "unflagged"
		}
		meta := []byte(fmt.Sprintf(`{"reason":%q}`, reason))
		return s.audit(ctx, lq, transferID, &adminID, action, "", "", meta)
	})
	if err != nil {
		return nil, err
	}
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// Relaunch re-notifies the parties of a stalled pending or cancelled
// transfer and bumps its relaunch counter. The counter write is conditional
// on the status still being relaunchable.
func (s *Service) Relaunch(ctx context.Context, transferID, adminID uuid.UUID) (*models.Transfer, error) {
	err := s.ledger.RunInTx(ctx, func(lq *repository.LedgerQueries) error {
		rows, err := lq.IncrementRelaunch(ctx, transferID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.conflictOrNotFound(ctx, lq, transferID)
		}
		if err := s.audit(ctx, lq, transferID, &adminID, "relaunched", "", "", nil); err != nil {
			return err
		}
		t, err := lq.GetTransfer(ctx, transferID)
		if err != nil {
			return err
		}
		return s.writeTransferEvents(ctx, lq, t, domain.EventTransferRelaunch, "")
	})
	if err != nil {
		return nil, err
	}
	observability.IncrementTransferTransition("relaunched")
	return s.ledger.Queries().GetTransfer(ctx, transferID)
}

// List returns transfers matching the filter, admin surface only.
func (s *Service) List(ctx context.Context, filter repository.TransferFilter) ([]models.Transfer, error) {
	return s.ledger.Queries().ListTransfers(ctx, filter)
}

// conflictOrNotFound disambiguates a zero-row conditional write: the row is
// either absent or in a state the operation does not accept.
func (s *Service) conflictOrNotFound(ctx context.Context, lq *repository.LedgerQueries, transferID uuid.UUID) error {
	if _, err := lq.GetTransfer(ctx, transferID); err != nil {
		return err
	}
	return domain.ErrAlreadyProcessed
}
