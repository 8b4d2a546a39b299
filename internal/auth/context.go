package auth

import (
	"context"

	"careportal/internal/models"
)

type ctxKey string

const accountKey ctxKey = "authAccount"

// WithAccount stores the resolved account on the request context.
func WithAccount(ctx context.Context, a *models.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFromContext returns the authenticated account, or nil when the
// request never passed the auth middleware.
func AccountFromContext(ctx context.Context) *models.Account {
	if v, ok := ctx.Value(accountKey).(*models.Account); ok {
		return v
	}
	return nil
}

// Subject returns the authenticated account id, or "" when anonymous.
func Subject(ctx context.Context) string {
	if a := AccountFromContext(ctx); a != nil {
		return a.ID
	}
	return ""
}
