package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Header precedence for the caller-supplied key. First present wins.
var keyHeaders = []string{"Idempotency-Key", "X-Idempotency-Key", "X-Request-Id"}

// KeyFromRequest extracts the caller-supplied idempotency key, or "" when
// the caller sent none.
func KeyFromRequest(r *http.Request) string {
	for _, h := range keyHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return ""
}

// DeriveKey builds a deterministic key from the stable identity of a payment
// when the caller supplied none: two retries of the same logical operation
// collapse onto one key without any coordination between the callers.
func DeriveKey(senderID, recipient, amount, senderCurrency, receiverCurrency, country, channel string) string {
	tuple := strings.Join([]string{senderID, recipient, amount, senderCurrency, receiverCurrency, country, channel}, "|")
	sum := sha256.Sum256([]byte(tuple))
	return "derived:" + hex.EncodeToString(sum[:])
}

// RequestHash fingerprints the request body so a reused key with a different
// payload is rejected instead of replaying an unrelated response.
func RequestHash(method, path string, body []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s %s\n", method, path)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
