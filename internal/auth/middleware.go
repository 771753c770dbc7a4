package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/domain"
)

type identityContextKey struct{}

// IdentityResolver turns a session token into an identity.
// It returns a nil identity and nil error for unknown tokens.
type IdentityResolver interface {
	Current(ctx context.Context, token string) (*domain.Identity, error)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the caller identity, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityContextKey{}).(*domain.Identity)
	return id
}

// Middleware resolves the session cookie and stores the identity in the
// request context. Requests without a valid session continue anonymously;
// the guards decide whether that is acceptable.
func Middleware(resolver IdentityResolver, cookieName string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.Current(r.Context(), cookie.Value)
			if err != nil {
				logger.Error().Err(err).Str("path", r.URL.Path).Msg("failed to resolve session")
				writeInternalError(w)
				return
			}

			if id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
