package idempotency

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFromRequestPrecedence(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/transactions/initiate", nil)
	r.Header.Set("X-Request-Id", "req-1")
	r.Header.Set("X-Idempotency-Key", "xkey-1")
	require.Equal(t, "xkey-1", KeyFromRequest(r))

	r.Header.Set("Idempotency-Key", "key-1")
	require.Equal(t, "key-1", KeyFromRequest(r))

	r.Header.Del("Idempotency-Key")
	r.Header.Del("X-Idempotency-Key")
	require.Equal(t, "req-1", KeyFromRequest(r))

	r.Header.Del("X-Request-Id")
	require.Empty(t, KeyFromRequest(r))
}

func TestKeyFromRequestTrimsWhitespace(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/internal-payments", nil)
	r.Header.Set("Idempotency-Key", "   ")
	r.Header.Set("X-Request-Id", "fallback")
	require.Equal(t, "fallback", KeyFromRequest(r))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey("sender-1", "alice@example.com", "100.00", "XAF", "XAF", "CM", "p2p")
	b := DeriveKey("sender-1", "alice@example.com", "100.00", "XAF", "XAF", "CM", "p2p")
	require.Equal(t, a, b)
	require.Contains(t, a, "derived:")

	c := DeriveKey("sender-1", "alice@example.com", "100.01", "XAF", "XAF", "CM", "p2p")
	require.NotEqual(t, a, c)
}

func TestRequestHashCoversMethodPathAndBody(t *testing.T) {
	base := RequestHash("POST", "/v1/transactions/initiate", []byte(`{"amount":"10"}`))
	require.NotEqual(t, base, RequestHash("PUT", "/v1/transactions/initiate", []byte(`{"amount":"10"}`)))
	require.NotEqual(t, base, RequestHash("POST", "/v1/transactions/cancel", []byte(`{"amount":"10"}`)))
	require.NotEqual(t, base, RequestHash("POST", "/v1/transactions/initiate", []byte(`{"amount":"11"}`)))
	require.Equal(t, base, RequestHash("POST", "/v1/transactions/initiate", []byte(`{"amount":"10"}`)))
}
