package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
)

type identityKeyType string

const identityKey identityKeyType = "identity"

// IdentityResolver loads the current account state of a token subject.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (*domain.Identity, error)
}

// ResolveIdentity turns verified token claims into a gate identity read from
// the user store, so approval and ban changes apply to tokens issued
// earlier. Anonymous requests pass through without an identity. Mount it
// after OptionalAuth.
func ResolveIdentity(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := middleware.ClaimsFromContext(r.Context())
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.ResolveIdentity(r.Context(), claims.UserID)
			if err != nil {
				httputil.WriteError(w, r, err, logger)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// identityFrom returns the caller's identity, or nil for anonymous requests.
func identityFrom(r *http.Request) *domain.Identity {
	id, _ := r.Context().Value(identityKey).(*domain.Identity)
	return id
}
