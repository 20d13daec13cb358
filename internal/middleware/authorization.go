package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// RequireRole ensures the authenticated user holds one of the allowed roles.
// Roles compare case-insensitively, so "Admin" satisfies "admin".
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !hasRole(allowedRoles, role) {
				logger.Warn("User role not authorized",
					zap.String("role", role),
					zap.Strings("allowed_roles", allowedRoles),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(allowed []string, role string) bool {
	role = strings.TrimSpace(role)
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, role) {
			return true
		}
	}
	return false
}
