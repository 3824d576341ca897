package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/deskpilot/deskpilot/pkg/models"
)

// localUser is the principal used when auth is disabled, so single-user
// deployments work without issuing tokens.
var localUser = &models.User{ID: "local"}

// Middleware enforces bearer-token auth on every request. With auth
// disabled it attaches the local principal instead of rejecting.
func Middleware(service *JWTService, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !service.Enabled() {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), localUser)))
				return
			}

			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			user, err := service.Validate(token)
			if err != nil {
				logger.Warn("token validation failed", "error", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
