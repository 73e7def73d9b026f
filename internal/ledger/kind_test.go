package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
)

func TestParseKind(t *testing.T) {
	for tag, wantMode := range map[string]Mode{
		"bonus":                  ModeCreditOnly,
		"cashback":               ModeCreditOnly,
		"adjustment_credit":      ModeCreditOnly,
		"cagnotte_withdrawal":    ModeCreditOnly,
		"adjustment_debit":       ModeDebitOnly,
		"purchase":               ModeTransfer,
		"cagnotte_participation": ModeDebitNoCredit,
		"generic":                ModeGeneric,
	} {
		kind, err := ParseKind(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, tag, kind.String())
		assert.Equal(t, wantMode, kind.Mode(), tag)
	}

	for _, tag := range []string{"", "BONUS", "unknown", "bonus "} {
		_, err := ParseKind(tag)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationKind, "%q", tag)
	}
}

func TestResolveParties(t *testing.T) {
	system := uuid.MustParse(domain.SystemUserID)
	alice := uuid.New()
	bob := uuid.New()

	t.Run("credit only fills system debit side", func(t *testing.T) {
		debit, credit, err := resolveParties(ModeCreditOnly, uuid.Nil, alice, system)
		require.NoError(t, err)
		assert.Equal(t, system, debit)
		assert.Equal(t, alice, credit)

		_, _, err = resolveParties(ModeCreditOnly, uuid.Nil, uuid.Nil, system)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationKind)
	})

	t.Run("debit only fills system credit side", func(t *testing.T) {
		debit, credit, err := resolveParties(ModeDebitOnly, alice, uuid.Nil, system)
		require.NoError(t, err)
		assert.Equal(t, alice, debit)
		assert.Equal(t, system, credit)

		_, _, err = resolveParties(ModeDebitOnly, uuid.Nil, uuid.Nil, system)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationKind)
	})

	t.Run("transfer requires two distinct parties", func(t *testing.T) {
		debit, credit, err := resolveParties(ModeTransfer, alice, bob, system)
		require.NoError(t, err)
		assert.Equal(t, alice, debit)
		assert.Equal(t, bob, credit)

		_, _, err = resolveParties(ModeTransfer, alice, alice, system)
		assert.ErrorIs(t, err, domain.ErrSelfTransfer)

		_, _, err = resolveParties(ModeTransfer, alice, uuid.Nil, system)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationKind)
	})

	t.Run("participation has no credit leg", func(t *testing.T) {
		debit, credit, err := resolveParties(ModeDebitNoCredit, alice, uuid.Nil, system)
		require.NoError(t, err)
		assert.Equal(t, alice, debit)
		assert.Equal(t, uuid.Nil, credit)
	})

	t.Run("generic defaults the absent side", func(t *testing.T) {
		debit, credit, err := resolveParties(ModeGeneric, alice, uuid.Nil, system)
		require.NoError(t, err)
		assert.Equal(t, alice, debit)
		assert.Equal(t, system, credit)

		debit, credit, err = resolveParties(ModeGeneric, uuid.Nil, bob, system)
		require.NoError(t, err)
		assert.Equal(t, system, debit)
		assert.Equal(t, bob, credit)

		_, _, err = resolveParties(ModeGeneric, uuid.Nil, uuid.Nil, system)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationKind)
	})
}
