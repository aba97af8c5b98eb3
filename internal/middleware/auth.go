package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/errs"

	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to an active identity
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

type contextKey string

const (
	identityKey       contextKey = "identity"
	identityHolderKey contextKey = "identity_holder"
)

// identityHolder lets outer middleware see the identity resolved further down
// the chain.
type identityHolder struct {
	id string
}

func withIdentityHolder(ctx context.Context, holder *identityHolder) context.Context {
	return context.WithValue(ctx, identityHolderKey, holder)
}

// AuthMiddleware requires a valid bearer token for an active identity and
// attaches that identity to the request context
func AuthMiddleware(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			identity, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				switch {
				case errors.Is(err, errs.ErrTokenExpired):
					logger.Debug("Token expired")
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				case errors.Is(err, errs.ErrUnauthorized):
					logger.Debug("Authentication failed", zap.Error(err))
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				default:
					logger.Error("Failed to authenticate request", zap.Error(err))
					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			logger.Debug("Identity authenticated",
				zap.String("identity_id", identity.ID.String()),
				zap.String("role", string(identity.Role)),
			)

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	if holder, ok := ctx.Value(identityHolderKey).(*identityHolder); ok {
		holder.id = identity.ID.String()
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by AuthMiddleware
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}
