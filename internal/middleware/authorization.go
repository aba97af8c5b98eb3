package middleware

import (
	"net/http"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// RequireRole middleware ensures the authenticated identity has one of the
// specified roles. It must run after AuthMiddleware.
func RequireRole(logger *zap.Logger, allowedRoles ...domain.Role) func(http.Handler) http.Handler {
	allowedNames := make([]string, len(allowedRoles))
	for i, role := range allowedRoles {
		allowedNames[i] = string(role)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				logger.Warn("Identity not found in context")
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, role := range allowedRoles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("Identity role not authorized",
				zap.String("identity_id", identity.ID.String()),
				zap.String("role", string(identity.Role)),
				zap.Strings("allowed_roles", allowedNames),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
