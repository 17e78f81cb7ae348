package access

import (
	"context"

	"github.com/balakodigital/crm-notifier/internal/models"
)

type ctxKey struct{}

// WithIdentity attaches the caller's identity to ctx. A nil identity is
// stored as absent.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext returns nil when the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(ctxKey{}).(*models.Identity)
	return identity
}
