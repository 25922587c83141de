package handlers

import (
	"context"

	"studentpredict/backend/internal/shared"
)

type contextKey struct{}

var userContextKey contextKey

// WithUser stores the authenticated user on the request context.
func WithUser(ctx context.Context, user *shared.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user injected by the auth
// middleware. The bool is false on routes that skipped the middleware.
func UserFromContext(ctx context.Context) (*shared.User, bool) {
	user, ok := ctx.Value(userContextKey).(*shared.User)
	return user, ok
}
