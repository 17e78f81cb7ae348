package api

import (
	"net/http"
	"strings"

	"github.com/balakodigital/crm-notifier/internal/access"
	"github.com/balakodigital/crm-notifier/internal/models"
)

// Set by the session proxy in front of the service.
const (
	userIDHeader   = "X-User-Id"
	userRoleHeader = "X-User-Role"
)

func identityFromRequest(r *http.Request) *models.Identity {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		return nil
	}
	return &models.Identity{
		UserID: userID,
		Role:   models.ParseRole(r.Header.Get(userRoleHeader)),
	}
}

func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := access.WithIdentity(r.Context(), identityFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
