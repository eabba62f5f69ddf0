package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"soulbound/pkg/requestcontext"
)

// BearerValidator checks a delegated governance token and returns the
// operator it names.
type BearerValidator interface {
	ValidateBearer(token string) (actor string, err error)
}

// RequireAdminToken gates governance endpoints behind a shared admin token.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			// Use constant-time comparison to prevent timing attacks
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireGovernance gates governance endpoints. It accepts either the
// shared admin token or a delegated bearer token issued against it; the
// bearer path stashes the operator identity for audit trails.
func RequireGovernance(expectedToken string, bearer BearerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	adminOnly := RequireAdminToken(expectedToken, logger)
	return func(next http.Handler) http.Handler {
		fallback := adminOnly(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || bearer == nil {
				fallback.ServeHTTP(w, r)
				return
			}

			actor, err := bearer.ValidateBearer(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "governance bearer token rejected",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"invalid governance token"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), actor)))
		})
	}
}
