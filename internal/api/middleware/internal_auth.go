package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/jeanElossy/api-paynoval-sub000/internal/api/problem"
)

const internalTokenHeader = "X-Internal-Token"

// InternalAuth gates service-to-service routes behind a shared secret,
// compared in constant time. An empty configured token disables the routes.
func InternalAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/internal-disabled"), http.StatusText(http.StatusForbidden), "internal routes are not enabled")
				return
			}
			supplied := r.Header.Get(internalTokenHeader)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-internal-token"), http.StatusText(http.StatusUnauthorized), "invalid internal token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
