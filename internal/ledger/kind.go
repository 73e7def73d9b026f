package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
)

// Kind classifies an internal payment. The set is closed: resolution happens
// once at the boundary via ParseKind and every downstream switch is
// exhaustive over these values.
type Kind int

const (
	KindBonus Kind = iota + 1
	KindCashback
	KindAdjustmentCredit
	KindAdjustmentDebit
	KindPurchase
	KindCagnotteWithdrawal
	KindCagnotteParticipation
	KindGeneric
)

var kindNames = map[Kind]string{
	KindBonus:                 "bonus",
	KindCashback:              "cashback",
	KindAdjustmentCredit:      "adjustment_credit",
	KindAdjustmentDebit:       "adjustment_debit",
	KindPurchase:              "purchase",
	KindCagnotteWithdrawal:    "cagnotte_withdrawal",
	KindCagnotteParticipation: "cagnotte_participation",
	KindGeneric:               "generic",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k Kind) String() string { return kindNames[k] }

// ParseKind resolves the wire tag. Unknown or empty tags are rejected here,
// before any ledger access.
func ParseKind(tag string) (Kind, error) {
	k, ok := kindsByName[tag]
	if !ok {
		return 0, fmt.Errorf("kind %q: %w", tag, domain.ErrInvalidOperationKind)
	}
	return k, nil
}

// Mode is the execution shape a kind resolves to: which legs move money and
// which party defaults to the administrative account.
type Mode int

const (
	// ModeCreditOnly debits the administrative account and credits the target.
	ModeCreditOnly Mode = iota + 1
	// ModeDebitOnly debits the target and credits the administrative account.
	ModeDebitOnly
	// ModeTransfer moves funds between two distinct real parties.
	ModeTransfer
	// ModeDebitNoCredit debits the target with no credit leg anywhere; the
	// amount leaves the ledger total (held in an external pot).
	ModeDebitNoCredit
	// ModeGeneric accepts any one-or-two-party shape; an absent side defaults
	// to the administrative account.
	ModeGeneric
)

var modeNames = map[Mode]string{
	ModeCreditOnly:    "credit_only",
	ModeDebitOnly:     "debit_only",
	ModeTransfer:      "transfer",
	ModeDebitNoCredit: "debit_no_credit",
	ModeGeneric:       "generic",
}

func (m Mode) String() string { return modeNames[m] }

// Mode maps each kind to its execution shape.
func (k Kind) Mode() Mode {
	switch k {
	case KindBonus, KindCashback, KindAdjustmentCredit, KindCagnotteWithdrawal:
		return ModeCreditOnly
	case KindAdjustmentDebit:
		return ModeDebitOnly
	case KindPurchase:
		return ModeTransfer
	case KindCagnotteParticipation:
		return ModeDebitNoCredit
	case KindGeneric:
		return ModeGeneric
	default:
		// Unreachable for values produced by ParseKind.
		return ModeGeneric
	}
}

// resolveParties fixes the debit and credit sides for a kind given the
// optional caller-supplied parties. systemID fills whichever side the mode
// leaves implicit. A zero UUID means "absent".
func resolveParties(mode Mode, from, to, systemID uuid.UUID) (debit, credit uuid.UUID, err error) {
	switch mode {
	case ModeCreditOnly:
		if to == uuid.Nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("credit-only payment requires a target: %w", domain.ErrInvalidOperationKind)
		}
		return systemID, to, nil
	case ModeDebitOnly:
		if from == uuid.Nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("debit-only payment requires a source: %w", domain.ErrInvalidOperationKind)
		}
		return from, systemID, nil
	case ModeTransfer:
		if from == uuid.Nil || to == uuid.Nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("transfer payment requires both parties: %w", domain.ErrInvalidOperationKind)
		}
		if from == to {
			return uuid.Nil, uuid.Nil, domain.ErrSelfTransfer
		}
		return from, to, nil
	case ModeDebitNoCredit:
		if from == uuid.Nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("participation payment requires a source: %w", domain.ErrInvalidOperationKind)
		}
		return from, uuid.Nil, nil
	case ModeGeneric:
		if from == uuid.Nil && to == uuid.Nil {
			return uuid.Nil, uuid.Nil, fmt.Errorf("generic payment requires at least one party: %w", domain.ErrInvalidOperationKind)
		}
		if from == uuid.Nil {
			from = systemID
		}
		if to == uuid.Nil {
			to = systemID
		}
		if from == to {
			return uuid.Nil, uuid.Nil, domain.ErrSelfTransfer
		}
		return from, to, nil
	default:
		return uuid.Nil, uuid.Nil, domain.ErrInvalidOperationKind
	}
}
