package auth

import (
	"net/http"
	"strings"

	"github.com/nadmax/medrank/internal/httputil"
)

// Middleware rejects requests without a valid bearer token and stores the
// resolved Actor in the request context.
func Middleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(bearer) < 7 || !strings.EqualFold(bearer[:7], "Bearer ") {
				httputil.WriteJSONError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			actor, err := issuer.Parse(strings.TrimSpace(bearer[7:]))
			if err != nil {
				httputil.WriteJSONError(w, "invalid authentication credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
