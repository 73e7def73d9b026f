package ledger

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
)

// The status graph is a DAG: pending fans out to the two terminal-ish states,
// confirmed may be refunded once, and nothing re-enters a terminal state.
// Archival and flagging are orthogonal flags, not statuses.
var transferTransitions = map[string]map[string]struct{}{
	domain.TransferStatusPending: {
		domain.TransferStatusConfirmed: {},
		domain.TransferStatusCancelled: {},
	},
	domain.TransferStatusConfirmed: {
		domain.TransferStatusRefunded: {},
	},
	domain.TransferStatusCancelled: {},
	domain.TransferStatusRefunded:  {},
}

func canTransition(current, next string) bool {
	nextStates, ok := transferTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// newVerificationSecret generates the write-once confirmation secret.
// The caller returns the token to the initiator exactly once; only the
// SHA-256 digest is persisted.
func newVerificationSecret() (token string, hash []byte, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate verification secret: %w", err)
	}
	token = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(token))
	return token, sum[:], nil
}

// newReference mints the human-facing transfer reference shown in receipts
// and notifications. Collisions are tolerable; the UUID stays the real key.
func newReference() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "PN-" + strings.ToUpper(uuid.NewString()[:12])
	}
	return "PN-" + strings.ToUpper(hex.EncodeToString(buf))
}

// secretMatches compares the supplied token against the stored digest in
// constant time.
func secretMatches(storedHash []byte, supplied string) bool {
	if len(storedHash) == 0 {
		return false
	}
	sum := sha256.Sum256([]byte(supplied))
	return hmac.Equal(storedHash, sum[:])
}
