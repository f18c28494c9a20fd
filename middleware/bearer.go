package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/goSession/jwt"
)

// TokenVerifier validates an access token. *jwt.Manager satisfies it.
type TokenVerifier interface {
	ParseAccess(token string) (*jwt.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims injected by [RequireBearer].
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return c, ok
}

// RequireBearer rejects requests without a valid "Authorization: Bearer" access
// token with a 401 JSON error and injects the verified claims otherwise.
func RequireBearer(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.ParseAccess(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
