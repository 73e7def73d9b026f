package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
)

func TestTransitionGraph(t *testing.T) {
	allowed := []struct{ from, to string }{
		{domain.TransferStatusPending, domain.TransferStatusConfirmed},
		{domain.TransferStatusPending, domain.TransferStatusCancelled},
		{domain.TransferStatusConfirmed, domain.TransferStatusRefunded},
	}
	for _, tc := range allowed {
		assert.True(t, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	// Terminal states admit nothing; no state re-enters pending.
	statuses := []string{
		domain.TransferStatusPending,
		domain.TransferStatusConfirmed,
		domain.TransferStatusCancelled,
		domain.TransferStatusRefunded,
	}
	for _, from := range []string{domain.TransferStatusCancelled, domain.TransferStatusRefunded} {
		for _, to := range statuses {
			assert.False(t, canTransition(from, to), "%s -> %s", from, to)
		}
	}
	for _, from := range statuses {
		assert.False(t, canTransition(from, domain.TransferStatusPending), "%s -> pending", from)
	}
	assert.False(t, canTransition("unknown", domain.TransferStatusConfirmed))
}

func TestVerificationSecret(t *testing.T) {
	token, hash, err := newVerificationSecret()
	require.NoError(t, err)
	assert.Len(t, token, 32) // 16 random bytes hex encoded
	assert.Len(t, hash, 32)  // sha256 digest

	assert.True(t, secretMatches(hash, token))
	assert.False(t, secretMatches(hash, token+"x"))
	assert.False(t, secretMatches(hash, ""))
	assert.False(t, secretMatches(nil, token))

	// Tokens are single-use random values; two generations never collide.
	token2, hash2, err := newVerificationSecret()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	assert.False(t, secretMatches(hash2, token))
}

func TestNewReferenceShape(t *testing.T) {
	ref := newReference()
	assert.True(t, strings.HasPrefix(ref, "PN-"))
	assert.Len(t, ref, 15)
	assert.NotEqual(t, ref, newReference())
}
