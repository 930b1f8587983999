package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth rejects requests whose Authorization bearer token is not in
// the configured allowlist. An empty allowlist rejects everything.
func BearerAuth(tokens []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !tokenAllowed(tokens, token) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenAllowed(tokens []string, candidate string) bool {
	allowed := false
	for _, token := range tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			allowed = true
		}
	}
	return allowed
}
